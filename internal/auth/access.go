package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
)

// RequireRole admits sessions whose user has one of roles.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := tenant.SessionFromContext(r.Context())
			if s == nil || s.User == nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			for _, role := range roles {
				if s.User.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// RequireHOAAccess admits super admins and the admins of the HOA named by
// the URL parameter param.
func RequireHOAAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := tenant.SessionFromContext(r.Context())
			if s == nil || s.User == nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !s.CanManage(chi.URLParam(r, param)) {
				writeError(w, http.StatusForbidden, "no access to this hoa")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
