package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/audit"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/identity"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/onboarding"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/queue"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
)

// SubscriptionMailer is satisfied by *queue.Client.
type SubscriptionMailer interface {
	EnqueueSubscriptionEmail(ctx context.Context, payload queue.SubscriptionEmailPayload) error
}

// AdminHandler serves the super-admin console.
type AdminHandler struct {
	tenants      *tenant.Service
	ids          identity.Provider
	orchestrator *onboarding.Orchestrator
	auditSvc     *audit.Service
	mailer       SubscriptionMailer
}

func NewAdminHandler(tenants *tenant.Service, ids identity.Provider, o *onboarding.Orchestrator, auditSvc *audit.Service, mailer SubscriptionMailer) *AdminHandler {
	return &AdminHandler{tenants: tenants, ids: ids, orchestrator: o, auditSvc: auditSvc, mailer: mailer}
}

func (h *AdminHandler) ListHOAs(w http.ResponseWriter, r *http.Request) {
	hoas, err := h.tenants.ListHOAs(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"hoas": hoas, "count": len(hoas)})
}

// StreamHOAs pushes the full HOA list as a server-sent event whenever it
// changes.
func (h *AdminHandler) StreamHOAs(w http.ResponseWriter, r *http.Request) {
	streamSnapshots(w, r, "hoas", h.tenants.SubscribeHOAs, tenant.DecodeHOAs)
}

// CreateHOA registers a tenant without provisioning an admin login.
func (h *AdminHandler) CreateHOA(w http.ResponseWriter, r *http.Request) {
	var reg onboarding.Registration
	if !decodeJSON(w, r, &reg) {
		return
	}
	ctx := r.Context()
	created, err := h.orchestrator.Register(ctx, reg)
	if err != nil {
		writeOnboardingError(w, err)
		return
	}
	h.audit(r, audit.LogEntry{
		HOAID:        created.Slug,
		Action:       audit.ActionHOACreated,
		ResourceType: "hoa",
		ResourceID:   created.Slug,
		Details:      map[string]interface{}{"name": created.Name, "adminEmail": created.AdminEmail},
	})

	hoa, err := h.tenants.GetHOA(ctx, created.Slug)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, hoa)
}

// UpdateHOA edits any field of the record, including the admin contact and
// subscription status.
func (h *AdminHandler) UpdateHOA(w http.ResponseWriter, r *http.Request) {
	var upd tenant.HOAUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	before, err := h.tenants.GetHOA(ctx, slug)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	hoa, err := h.tenants.UpdateHOA(ctx, slug, upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.audit(r, audit.LogEntry{HOAID: slug, Action: audit.ActionHOAUpdated, ResourceType: "hoa", ResourceID: slug})
	if hoa.SubscriptionStatus != before.SubscriptionStatus {
		h.statusChanged(r, slug, hoa.SubscriptionStatus)
	}
	writeJSON(w, http.StatusOK, hoa)
}

type statusRequest struct {
	Status models.SubscriptionStatus `json:"status"`
}

func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	if err := h.tenants.SetSubscriptionStatus(ctx, slug, req.Status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.statusChanged(r, slug, req.Status)

	hoa, err := h.tenants.GetHOA(ctx, slug)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hoa)
}

// statusChanged audits a subscription status change and queues the
// cancellation email when the HOA became inactive.
func (h *AdminHandler) statusChanged(r *http.Request, slug string, status models.SubscriptionStatus) {
	h.audit(r, audit.LogEntry{
		HOAID:        slug,
		Action:       audit.ActionHOAStatusChanged,
		ResourceType: "hoa",
		ResourceID:   slug,
		Details:      map[string]interface{}{"status": status},
	})

	if status == models.SubscriptionInactive && h.mailer != nil {
		err := h.mailer.EnqueueSubscriptionEmail(r.Context(), queue.SubscriptionEmailPayload{HOAID: slug, Kind: queue.EmailSubscriptionCancelled})
		if err != nil {
			slog.Error("enqueue cancellation email", "hoa", slug, "error", err)
		}
	}
}

// DeleteHOA removes the tenant record only; its users and violations stay.
func (h *AdminHandler) DeleteHOA(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := h.tenants.DeleteHOA(r.Context(), slug); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.audit(r, audit.LogEntry{HOAID: slug, Action: audit.ActionHOADeleted, ResourceType: "hoa", ResourceID: slug})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.tenants.ListUsers(r.Context(), r.URL.Query().Get("hoaId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users, "count": len(users)})
}

type createUserRequest struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      models.Role `json:"role"`
	HOAID     string      `json:"hoaId"`
}

// CreateUser provisions a login and its user record. The login is removed
// again if the record cannot be written.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	user := &models.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		HOAID:     req.HOAID,
	}
	if err := h.tenants.ValidateUser(ctx, user); err != nil {
		writeServiceError(w, r, err)
		return
	}

	id, err := h.ids.CreatePrincipal(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	user.ID = id
	if err := h.tenants.PutUser(ctx, user); err != nil {
		if derr := h.ids.DeletePrincipal(context.WithoutCancel(ctx), id); derr != nil {
			slog.Error("remove orphaned principal", "principal_id", id, "error", derr)
		}
		writeServiceError(w, r, err)
		return
	}

	h.audit(r, audit.LogEntry{
		HOAID:        user.HOAID,
		Action:       audit.ActionUserCreated,
		ResourceType: "user",
		ResourceID:   id,
		Details:      map[string]interface{}{"email": user.Email, "role": user.Role},
	})

	created, err := h.tenants.GetUser(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd tenant.UserUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	u, err := h.tenants.UpdateUser(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DeleteUser removes the user record and its login. A login that is already
// gone is not an error.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if s := tenant.SessionFromContext(ctx); s != nil && s.PrincipalID == id {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	u, err := h.tenants.GetUser(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.tenants.DeleteUser(ctx, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.ids.DeletePrincipal(ctx, id); err != nil && !errors.Is(err, identity.ErrPrincipalNotFound) {
		slog.Error("delete principal", "principal_id", id, "error", err)
	}

	h.audit(r, audit.LogEntry{
		HOAID:        u.HOAID,
		Action:       audit.ActionUserDeleted,
		ResourceType: "user",
		ResourceID:   id,
		Details:      map[string]interface{}{"email": u.Email},
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	q := audit.AuditQuery{
		HOAID:  r.URL.Query().Get("hoaId"),
		Action: r.URL.Query().Get("action"),
	}

	q.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	q.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if q.Limit <= 0 {
		q.Limit = 50
	}

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err == nil {
			q.StartDate = &t
		}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err == nil {
			q.EndDate = &t
		}
	}

	logs, err := h.auditSvc.GetAuditLogs(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"audit_logs": logs, "count": len(logs)})
}

func (h *AdminHandler) audit(r *http.Request, entry audit.LogEntry) {
	entry.IPAddress = clientIP(r)
	if err := h.auditSvc.Log(r.Context(), entry); err != nil {
		slog.Error("audit", "action", entry.Action, "error", err)
	}
}
