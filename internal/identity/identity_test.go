package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderCreatePrincipal(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider("secret", time.Hour)

	id, err := p.CreatePrincipal(ctx, "admin@sunset.example", "longenough1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = p.CreatePrincipal(ctx, "Admin@Sunset.example", "anotherpass")
	assert.ErrorIs(t, err, ErrEmailAlreadyInUse)

	_, err = p.CreatePrincipal(ctx, "not-an-email", "longenough1")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = p.CreatePrincipal(ctx, "Bob <bob@x.example>", "longenough1")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = p.CreatePrincipal(ctx, "short@x.example", "12345")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestMemoryProviderSignIn(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider("secret", 30*time.Minute)

	id, err := p.CreatePrincipal(ctx, "a@x.com", "longenough1")
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.SignIn(ctx, "nobody@x.com", "longenough1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	tok, err := p.SignIn(ctx, "a@x.com", "longenough1")
	require.NoError(t, err)
	assert.Equal(t, id, tok.PrincipalID)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, id, claims["sub"])
}

func TestMemoryProviderDeletePrincipal(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider("secret", time.Hour)

	id, err := p.CreatePrincipal(ctx, "a@x.com", "longenough1")
	require.NoError(t, err)
	require.NoError(t, p.DeletePrincipal(ctx, id))
	assert.ErrorIs(t, p.DeletePrincipal(ctx, id), ErrPrincipalNotFound)

	_, err = p.CreatePrincipal(ctx, "a@x.com", "longenough1")
	assert.NoError(t, err, "email is reusable after deletion")
}

func TestSupabaseProviderCreatePrincipal(t *testing.T) {
	var gotAuth, gotAPIKey string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/admin/users", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("apikey")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "uid-123", "email": "a@x.com"})
	}))
	defer srv.Close()

	p := NewSupabaseProvider(srv.URL+"/", "service-key")
	id, err := p.CreatePrincipal(context.Background(), "a@x.com", "longenough1")
	require.NoError(t, err)
	assert.Equal(t, "uid-123", id)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "service-key", gotAPIKey)
	assert.Equal(t, true, gotBody["email_confirm"])
}

func TestSupabaseProviderErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"email exists code", 422, `{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`, ErrEmailAlreadyInUse},
		{"email exists legacy", 422, `{"code":422,"msg":"A user with this email address has already been registered"}`, ErrEmailAlreadyInUse},
		{"weak password", 422, `{"code":422,"error_code":"weak_password","msg":"Password should be at least 6 characters."}`, ErrWeakSecret},
		{"weak password legacy", 422, `{"code":422,"msg":"Password should be at least 6 characters"}`, ErrWeakSecret},
		{"invalid email", 400, `{"code":400,"error_code":"email_address_invalid","msg":"Email address is invalid"}`, ErrInvalidEmail},
		{"invalid email legacy", 422, `{"code":422,"msg":"Unable to validate email address: invalid format"}`, ErrInvalidEmail},
		{"server error", 500, `{"code":500,"msg":"database error"}`, ErrProvisioningFailed},
		{"non json", 502, `bad gateway`, ErrProvisioningFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewSupabaseProvider(srv.URL, "k").CreatePrincipal(context.Background(), "a@x.com", "pw")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSupabaseProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewSupabaseProvider(url, "k").CreatePrincipal(context.Background(), "a@x.com", "longenough1")
	assert.ErrorIs(t, err, ErrProvisioningFailed)
}

func TestSupabaseProviderSignIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "longenough1" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok",
			"expires_in":   3600,
			"user":         map[string]string{"id": "uid-1"},
		})
	}))
	defer srv.Close()

	p := NewSupabaseProvider(srv.URL, "k")
	tok, err := p.SignIn(context.Background(), "a@x.com", "longenough1")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, "uid-1", tok.PrincipalID)

	_, err = p.SignIn(context.Background(), "a@x.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSupabaseProviderDeletePrincipal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/auth/v1/admin/users/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":404,"msg":"User not found"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewSupabaseProvider(srv.URL, "k")
	assert.NoError(t, p.DeletePrincipal(context.Background(), "uid-1"))
	assert.ErrorIs(t, p.DeletePrincipal(context.Background(), "missing"), ErrPrincipalNotFound)
}
