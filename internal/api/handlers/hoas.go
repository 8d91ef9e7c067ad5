package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
)

type HOAHandler struct {
	tenants *tenant.Service
}

func NewHOAHandler(tenants *tenant.Service) *HOAHandler {
	return &HOAHandler{tenants: tenants}
}

// Profile is the unauthenticated view used by the resident report form.
func (h *HOAHandler) Profile(w http.ResponseWriter, r *http.Request) {
	hoa, err := h.tenants.GetHOA(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hoa.Public())
}

func (h *HOAHandler) Settings(w http.ResponseWriter, r *http.Request) {
	hoa, err := h.tenants.GetHOA(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hoa)
}

func (h *HOAHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var upd tenant.SettingsUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}
	hoa, err := h.tenants.UpdateSettings(r.Context(), chi.URLParam(r, "slug"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hoa)
}
