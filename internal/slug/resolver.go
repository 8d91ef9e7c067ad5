package slug

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// DefaultMaxAttempts bounds the suffix search against a degenerate store.
const DefaultMaxAttempts = 1000

var ErrExhausted = errors.New("no free slug within attempt limit")

// Checker reports whether a tenant record already uses slug.
type Checker interface {
	SlugTaken(ctx context.Context, slug string) (bool, error)
}

type Resolver struct {
	checker     Checker
	maxAttempts int
}

func NewResolver(checker Checker, maxAttempts int) *Resolver {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Resolver{checker: checker, maxAttempts: maxAttempts}
}

// Candidate returns base for n == 0 and base-n otherwise.
func Candidate(base string, n int) string {
	if n == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// Resolve returns the first free candidate for base: base, base-1, base-2, ...
func (r *Resolver) Resolve(ctx context.Context, base string) (string, error) {
	s, _, err := r.ResolveFrom(ctx, base, 0)
	return s, err
}

// ResolveFrom tries candidates starting at suffix start and returns the free
// slug together with the suffix it used, so a caller that loses a write race
// can continue at n+1. The attempt limit counts from suffix zero.
func (r *Resolver) ResolveFrom(ctx context.Context, base string, start int) (string, int, error) {
	if base == "" {
		return "", 0, errors.New("empty base slug")
	}
	for n := start; n < r.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		candidate := Candidate(base, n)
		taken, err := r.checker.SlugTaken(ctx, candidate)
		if err != nil {
			return "", 0, fmt.Errorf("check slug %s: %w", candidate, err)
		}
		if !taken {
			return candidate, n, nil
		}
	}
	return "", 0, fmt.Errorf("resolve %s: %w", base, ErrExhausted)
}
