package identity

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinSecretLength matches the hosted provider's default password policy.
const MinSecretLength = 6

type principal struct {
	id    string
	email string
	hash  []byte
}

// MemoryProvider keeps principals in process and issues HS256 tokens signed
// with the same secret the API verifies, so local development and tests can
// run the full login flow without the hosted service.
type MemoryProvider struct {
	mu      sync.RWMutex
	byEmail map[string]*principal
	byID    map[string]*principal
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryProvider(jwtSecret string, ttl time.Duration) *MemoryProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryProvider{
		byEmail: make(map[string]*principal),
		byID:    make(map[string]*principal),
		secret:  []byte(jwtSecret),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (p *MemoryProvider) CreatePrincipal(ctx context.Context, email, secret string) (string, error) {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	if len(secret) < MinSecretLength {
		return "", ErrWeakSecret
	}

	key := strings.ToLower(email)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byEmail[key]; ok {
		return "", ErrEmailAlreadyInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%w: hash secret: %v", ErrProvisioningFailed, err)
	}

	pr := &principal{id: uuid.NewString(), email: email, hash: hash}
	p.byEmail[key] = pr
	p.byID[pr.id] = pr
	return pr.id, nil
}

func (p *MemoryProvider) DeletePrincipal(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	delete(p.byID, id)
	delete(p.byEmail, strings.ToLower(pr.email))
	return nil
}

func (p *MemoryProvider) SignIn(ctx context.Context, email, secret string) (*Token, error) {
	p.mu.RLock()
	pr, ok := p.byEmail[strings.ToLower(email)]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(pr.hash, []byte(secret)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := p.now()
	exp := now.Add(p.ttl)
	claims := jwt.MapClaims{
		"sub":   pr.id,
		"email": pr.email,
		"role":  "authenticated",
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Token{AccessToken: signed, PrincipalID: pr.id, ExpiresAt: exp}, nil
}
