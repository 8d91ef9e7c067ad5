package handlers

import (
	"errors"
	"net/http"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/identity"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
)

type AuthHandler struct {
	ids     identity.Provider
	tenants *tenant.Service
}

func NewAuthHandler(ids identity.Provider, tenants *tenant.Service) *AuthHandler {
	return &AuthHandler{ids: ids, tenants: tenants}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	tok, err := h.ids.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	// A principal without a user record cannot use the admin API.
	user, err := h.tenants.GetUser(r.Context(), tok.PrincipalID)
	if errors.Is(err, tenant.ErrUserNotFound) {
		writeError(w, http.StatusForbidden, "account has no admin access")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"token": tok, "user": user})
}

type meResponse struct {
	User *models.User `json:"user"`
	HOA  *models.HOA  `json:"hoa,omitempty"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s := tenant.SessionFromContext(r.Context())
	if s == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: s.User, HOA: s.HOA})
}
