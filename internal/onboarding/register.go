package onboarding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/slug"
)

// Registration is a tenant created directly by a super admin. No login is
// provisioned; an admin user can be attached later.
type Registration struct {
	Name               string                    `json:"name"`
	Address            string                    `json:"address"`
	City               string                    `json:"city"`
	State              string                    `json:"state"`
	Zip                string                    `json:"zip"`
	Phone              string                    `json:"phone"`
	AdminEmail         string                    `json:"adminEmail"`
	AdditionalEmails   []string                  `json:"additionalEmails,omitempty"`
	ViolationTypes     []string                  `json:"violationTypes,omitempty"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	PrimaryColor       string                    `json:"primaryColor,omitempty"`
	LogoURL            string                    `json:"logoUrl,omitempty"`
}

func (r *Registration) missing() []string {
	var out []string
	if strings.TrimSpace(r.Name) == "" {
		out = append(out, "name")
	}
	if strings.TrimSpace(r.AdminEmail) == "" {
		out = append(out, "adminEmail")
	}
	return out
}

// Register writes a bare tenant record under a freshly resolved slug. The
// status defaults to pending and no trial period is started.
func (o *Orchestrator) Register(ctx context.Context, reg Registration) (*models.HOA, error) {
	if missing := reg.missing(); len(missing) > 0 {
		return nil, invalidInput("Missing required fields: " + strings.Join(missing, ", "))
	}
	status := reg.SubscriptionStatus
	if status == "" {
		status = models.SubscriptionPending
	}
	if !status.Valid() {
		return nil, invalidInput("Unknown subscription status: " + string(status))
	}
	base := slug.Generate(reg.Name)
	if base == "" {
		return nil, invalidInput("HOA name must contain at least one letter or number.")
	}

	candidate, n, err := o.resolver.ResolveFrom(ctx, base, 0)
	if err != nil {
		return nil, failure(KindSlugResolutionFailed, StageResolveSlug, StateStart, err)
	}

	types := models.DefaultViolationTypes
	if len(reg.ViolationTypes) > 0 {
		types = reg.ViolationTypes
	}
	color := reg.PrimaryColor
	if color == "" {
		color = models.DefaultPrimaryColor
	}
	extra := reg.AdditionalEmails
	if extra == nil {
		extra = []string{}
	}

	hoa := &models.HOA{
		Name:               reg.Name,
		Address:            reg.Address,
		City:               reg.City,
		State:              reg.State,
		Zip:                reg.Zip,
		Phone:              reg.Phone,
		AdminEmail:         reg.AdminEmail,
		AdditionalEmails:   extra,
		ViolationTypes:     append([]string(nil), types...),
		Branding:           models.Branding{PrimaryColor: color, LogoURL: reg.LogoURL},
		SubscriptionStatus: status,
	}
	if ferr := o.claimSlug(ctx, hoa, base, candidate, n, StateSlugResolved); ferr != nil {
		return nil, ferr
	}

	slog.Info("hoa registered", "slug", hoa.Slug)
	return hoa, nil
}
