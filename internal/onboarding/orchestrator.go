// Package onboarding provisions a new HOA tenant together with its first
// administrator.
package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/audit"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/identity"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/metrics"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/queue"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/slug"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
)

// TenantStore is the part of tenant.Service the workflow writes through.
type TenantStore interface {
	slug.Checker
	CreateHOA(ctx context.Context, hoa *models.HOA) error
	DeleteHOA(ctx context.Context, slug string) error
	PutUser(ctx context.Context, u *models.User) error
}

// Mailer queues the welcome email. Satisfied by *queue.Client.
type Mailer interface {
	EnqueueSubscriptionEmail(ctx context.Context, payload queue.SubscriptionEmailPayload) error
}

// Auditor is satisfied by *audit.Service.
type Auditor interface {
	Log(ctx context.Context, entry audit.LogEntry) error
}

type Config struct {
	TrialPeriod     time.Duration
	MaxSlugAttempts int
	// Compensate removes the principal and tenant created by a run that
	// fails at a later stage.
	Compensate bool
}

type Orchestrator struct {
	tenants  TenantStore
	ids      identity.Provider
	resolver *slug.Resolver
	cfg      Config
	now      func() time.Time

	mailer  Mailer
	auditor Auditor
}

func NewOrchestrator(tenants TenantStore, ids identity.Provider, cfg Config) *Orchestrator {
	if cfg.TrialPeriod <= 0 {
		cfg.TrialPeriod = 14 * 24 * time.Hour
	}
	return &Orchestrator{
		tenants:  tenants,
		ids:      ids,
		resolver: slug.NewResolver(tenants, cfg.MaxSlugAttempts),
		cfg:      cfg,
		now:      time.Now,
	}
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

func (o *Orchestrator) WithMailer(m Mailer) *Orchestrator {
	o.mailer = m
	return o
}

func (o *Orchestrator) WithAuditor(a Auditor) *Orchestrator {
	o.auditor = a
	return o
}

// Provision runs the onboarding workflow:
//
//	start -> slug resolved -> identity provisioned -> tenant written -> admin written
//
// Each step runs only after the previous one succeeded. Any failure is
// returned as an *Error. Unless Config.Compensate is set, artifacts created
// before the failing step are left in place.
func (o *Orchestrator) Provision(ctx context.Context, form Form) (_ *Result, err error) {
	started := time.Now()
	defer func() {
		outcome, stage := "success", string(StageWriteAdmin)
		var oe *Error
		if errors.As(err, &oe) {
			outcome, stage = string(oe.Kind), string(oe.Stage)
		}
		metrics.ObserveOnboarding(outcome, stage, time.Since(started))
	}()

	if missing := form.missing(); len(missing) > 0 {
		return nil, invalidInput("Missing required fields: " + strings.Join(missing, ", "))
	}
	base := slug.Generate(form.HOAName)
	if base == "" {
		return nil, invalidInput("HOA name must contain at least one letter or number.")
	}

	candidate, n, err := o.resolver.ResolveFrom(ctx, base, 0)
	if err != nil {
		return nil, failure(KindSlugResolutionFailed, StageResolveSlug, StateStart, err)
	}
	slog.Debug("slug resolved", "slug", candidate)

	principalID, err := o.ids.CreatePrincipal(ctx, form.AdminEmail, form.AdminPassword)
	if err != nil {
		return nil, identityError(err)
	}

	hoa := o.newHOA(form, principalID)
	if ferr := o.claimSlug(ctx, hoa, base, candidate, n, StateIdentityProvisioned); ferr != nil {
		o.compensate(ctx, principalID, "")
		return nil, ferr
	}

	admin := &models.User{
		ID:        principalID,
		Email:     form.AdminEmail,
		FirstName: form.AdminFirstName,
		LastName:  form.AdminLastName,
		Role:      models.RoleHOAAdmin,
		HOAID:     hoa.Slug,
	}
	if err := o.tenants.PutUser(ctx, admin); err != nil {
		o.compensate(ctx, principalID, hoa.Slug)
		return nil, failure(KindWriteFailed, StageWriteAdmin, StateTenantWritten, err)
	}

	slog.Info("hoa onboarded", "slug", hoa.Slug, "principal_id", principalID)
	o.announce(ctx, hoa)

	return &Result{TenantSlug: hoa.Slug, PrincipalID: principalID}, nil
}

// claimSlug writes hoa under candidate with a conditional create. When a
// concurrent writer claims the slug first, resolution resumes at the next
// suffix of base and the write is retried.
func (o *Orchestrator) claimSlug(ctx context.Context, hoa *models.HOA, base, candidate string, n int, reached State) *Error {
	for {
		hoa.Slug = candidate
		err := o.tenants.CreateHOA(ctx, hoa)
		if err == nil {
			return nil
		}
		if !errors.Is(err, tenant.ErrSlugTaken) {
			return failure(KindWriteFailed, StageWriteTenant, reached, err)
		}

		metrics.SlugConflicts.Inc()
		slog.Info("slug claimed concurrently, resolving next candidate", "slug", candidate)
		candidate, n, err = o.resolver.ResolveFrom(ctx, base, n+1)
		if err != nil {
			return failure(KindSlugResolutionFailed, StageWriteTenant, reached, err)
		}
	}
}

func (o *Orchestrator) newHOA(form Form, principalID string) *models.HOA {
	types := models.DefaultViolationTypes
	if len(form.ViolationTypes) > 0 {
		types = form.ViolationTypes
	}
	color := form.PrimaryColor
	if color == "" {
		color = models.DefaultPrimaryColor
	}

	return &models.HOA{
		Name:             form.HOAName,
		Address:          form.HOAAddress,
		City:             form.HOACity,
		State:            form.HOAState,
		Zip:              form.HOAZip,
		Phone:            form.HOAPhone,
		AdminEmail:       form.AdminEmail,
		AdminUID:         principalID,
		AdditionalEmails: []string{},
		ViolationTypes:   append([]string(nil), types...),
		Branding: models.Branding{
			PrimaryColor: color,
			LogoURL:      form.LogoURL,
		},
		SubscriptionStatus: models.SubscriptionTrial,
		TrialEndsAt:        o.now().UTC().Add(o.cfg.TrialPeriod),
	}
}

// compensate undoes earlier steps when enabled. It runs detached from the
// request context so a client disconnect does not stop the cleanup.
func (o *Orchestrator) compensate(ctx context.Context, principalID, hoaSlug string) {
	if !o.cfg.Compensate {
		slog.Warn("onboarding failed after partial provisioning", "principal_id", principalID, "slug", hoaSlug)
		return
	}
	ctx = context.WithoutCancel(ctx)

	if hoaSlug != "" {
		if err := o.tenants.DeleteHOA(ctx, hoaSlug); err != nil {
			slog.Error("compensation: delete hoa", "slug", hoaSlug, "error", err)
		}
	}
	if err := o.ids.DeletePrincipal(ctx, principalID); err != nil {
		slog.Error("compensation: delete principal", "principal_id", principalID, "error", err)
	}
}

// announce runs the post-success side effects. Their failures are logged
// only; the tenant exists either way.
func (o *Orchestrator) announce(ctx context.Context, hoa *models.HOA) {
	if o.auditor != nil {
		err := o.auditor.Log(ctx, audit.LogEntry{
			HOAID:        hoa.Slug,
			Action:       audit.ActionHOAOnboarded,
			ResourceType: "hoa",
			ResourceID:   hoa.Slug,
			Details:      map[string]interface{}{"name": hoa.Name, "adminEmail": hoa.AdminEmail},
		})
		if err != nil {
			slog.Error("audit onboarding", "slug", hoa.Slug, "error", err)
		}
	}
	if o.mailer != nil {
		err := o.mailer.EnqueueSubscriptionEmail(ctx, queue.SubscriptionEmailPayload{
			HOAID: hoa.Slug,
			Kind:  queue.EmailWelcome,
		})
		if err != nil {
			slog.Error("enqueue welcome email", "slug", hoa.Slug, "error", err)
		}
	}
}
