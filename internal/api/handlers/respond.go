package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/identity"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/violation"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP statuses. Anything unexpected
// is logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenant.ErrHOANotFound),
		errors.Is(err, tenant.ErrUserNotFound),
		errors.Is(err, violation.ErrNotFound),
		errors.Is(err, identity.ErrPrincipalNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tenant.ErrInvalidSettings),
		errors.Is(err, tenant.ErrInvalidUser),
		errors.Is(err, violation.ErrInvalid),
		errors.Is(err, identity.ErrWeakSecret),
		errors.Is(err, identity.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tenant.ErrSlugTaken),
		errors.Is(err, identity.ErrEmailAlreadyInUse):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
