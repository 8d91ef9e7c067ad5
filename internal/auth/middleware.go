package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
)

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Directory resolves a token subject to its records. Satisfied by
// *tenant.Service.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetHOA(ctx context.Context, slug string) (*models.HOA, error)
}

type JWTMiddleware struct {
	secret    []byte
	directory Directory
}

func NewJWTMiddleware(secret string, dir Directory) *JWTMiddleware {
	return &JWTMiddleware{
		secret:    []byte(secret),
		directory: dir,
	}
}

// Authenticate verifies the bearer token and attaches a tenant.Session built
// from the user record named by its subject.
func (m *JWTMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := m.Parse(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := r.Context()
		user, err := m.directory.GetUser(ctx, claims.Subject)
		if errors.Is(err, tenant.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		if err != nil {
			slog.Error("load session user", "principal_id", claims.Subject, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}

		session := &tenant.Session{PrincipalID: claims.Subject, Email: claims.Email, User: user}
		if user.Role == models.RoleHOAAdmin && user.HOAID != "" {
			hoa, err := m.directory.GetHOA(ctx, user.HOAID)
			switch {
			case err == nil:
				session.HOA = hoa
			case errors.Is(err, tenant.ErrHOANotFound):
				slog.Warn("user references missing hoa", "principal_id", user.ID, "hoa", user.HOAID)
			default:
				slog.Error("load session hoa", "hoa", user.HOAID, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to load hoa")
				return
			}
		}

		ctx = tenant.WithSession(ctx, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Parse validates an HS256 token and returns its claims. Expiry is enforced
// by the parser.
func (m *JWTMiddleware) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// EventSource cannot set headers, so the SSE endpoints also accept
	// ?access_token=.
	return r.URL.Query().Get("access_token")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
