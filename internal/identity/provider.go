// Package identity talks to the authentication service that owns login
// principals (email + secret).
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmailAlreadyInUse  = errors.New("email already in use")
	ErrWeakSecret         = errors.New("secret too weak")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrProvisioningFailed = errors.New("principal provisioning failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPrincipalNotFound  = errors.New("principal not found")
)

// Token is an access token issued on sign-in. Subject is the principal ID.
type Token struct {
	AccessToken string    `json:"accessToken"`
	PrincipalID string    `json:"principalId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Provider creates and removes principals and signs them in.
//
// CreatePrincipal returns ErrEmailAlreadyInUse, ErrWeakSecret or
// ErrInvalidEmail for rejected input and wraps ErrProvisioningFailed for
// everything else. It is not idempotent: a second call with the same email
// fails with ErrEmailAlreadyInUse.
type Provider interface {
	CreatePrincipal(ctx context.Context, email, secret string) (string, error)
	DeletePrincipal(ctx context.Context, id string) error
	SignIn(ctx context.Context, email, secret string) (*Token, error)
}
