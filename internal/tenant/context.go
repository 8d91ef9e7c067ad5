package tenant

import (
	"context"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
)

type contextKey string

const sessionKey contextKey = "session"

// Session binds an authenticated principal to its user record and, for HOA
// admins, the HOA they manage. It is built per request and passed explicitly
// through the context.
type Session struct {
	PrincipalID string
	Email       string
	User        *models.User
	HOA         *models.HOA
}

func (s *Session) IsSuperAdmin() bool {
	return s != nil && s.User != nil && s.User.Role == models.RoleSuperAdmin
}

// CanManage reports whether the session may administer the HOA at slug.
func (s *Session) CanManage(slug string) bool {
	if s == nil || s.User == nil {
		return false
	}
	if s.IsSuperAdmin() {
		return true
	}
	return s.User.Role == models.RoleHOAAdmin && s.User.HOAID == slug
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// ActorID is the principal behind ctx, or "" for anonymous callers.
func ActorID(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return s.PrincipalID
	}
	return ""
}
