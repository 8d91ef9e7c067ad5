// Package tenant stores HOA (tenant) records keyed by slug and the user
// records of their administrators keyed by principal ID.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/cache"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
)

const (
	CollectionHOAs  = "hoas"
	CollectionUsers = "users"
)

var (
	ErrHOANotFound     = errors.New("hoa not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrSlugTaken       = errors.New("slug already in use")
	ErrInvalidSettings = errors.New("invalid hoa settings")
	ErrInvalidUser     = errors.New("invalid user")
)

// Cacher is satisfied by cache.Cache.
type Cacher interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	store docstore.Store
	cache Cacher
	ttl   time.Duration
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// WithCache enables read-through caching of HOA lookups by slug.
func (s *Service) WithCache(c Cacher, ttl time.Duration) *Service {
	s.cache = c
	s.ttl = ttl
	return s
}

func (s *Service) SlugTaken(ctx context.Context, slug string) (bool, error) {
	return s.store.Exists(ctx, CollectionHOAs, slug)
}

// CreateHOA writes hoa under hoa.Slug only if the slug is free, returning
// ErrSlugTaken when another writer got there first.
func (s *Service) CreateHOA(ctx context.Context, hoa *models.HOA) error {
	err := s.store.Create(ctx, CollectionHOAs, hoa.Slug, writable(hoa))
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return fmt.Errorf("create hoa %s: %w", hoa.Slug, ErrSlugTaken)
	}
	if err != nil {
		return fmt.Errorf("create hoa: %w", err)
	}
	return nil
}

func (s *Service) GetHOA(ctx context.Context, slug string) (*models.HOA, error) {
	if s.cache != nil {
		var cached models.HOA
		err := s.cache.Get(ctx, hoaCacheKey(slug), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("hoa cache read failed", "slug", slug, "error", err)
		}
	}

	hoa, err := s.loadHOA(ctx, slug)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, hoaCacheKey(slug), hoa, s.ttl); err != nil {
			slog.Warn("hoa cache write failed", "slug", slug, "error", err)
		}
	}
	return hoa, nil
}

func (s *Service) loadHOA(ctx context.Context, slug string) (*models.HOA, error) {
	doc, err := s.store.Get(ctx, CollectionHOAs, slug)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrHOANotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hoa: %w", err)
	}
	return DecodeHOA(doc)
}

func (s *Service) ListHOAs(ctx context.Context) ([]models.HOA, error) {
	docs, err := s.store.List(ctx, docstore.Query{Collection: CollectionHOAs, OrderBy: docstore.OrderByCreated, Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list hoas: %w", err)
	}
	return DecodeHOAs(docs)
}

// SubscribeHOAs streams the full HOA list, newest first, on every change.
func (s *Service) SubscribeHOAs(ctx context.Context) (*docstore.Subscription, error) {
	return s.store.Subscribe(ctx, docstore.Query{Collection: CollectionHOAs, OrderBy: docstore.OrderByCreated, Desc: true})
}

// SettingsUpdate carries the fields an HOA admin may change. Nil fields are
// left untouched.
type SettingsUpdate struct {
	Name             *string          `json:"name,omitempty"`
	Address          *string          `json:"address,omitempty"`
	City             *string          `json:"city,omitempty"`
	State            *string          `json:"state,omitempty"`
	Zip              *string          `json:"zip,omitempty"`
	Phone            *string          `json:"phone,omitempty"`
	AdditionalEmails *[]string        `json:"additionalEmails,omitempty"`
	ViolationTypes   *[]string        `json:"violationTypes,omitempty"`
	Branding         *models.Branding `json:"branding,omitempty"`
}

func (u SettingsUpdate) fields() (map[string]interface{}, error) {
	f := map[string]interface{}{}
	set := func(key string, v *string) {
		if v != nil {
			f[key] = *v
		}
	}
	set("name", u.Name)
	set("address", u.Address)
	set("city", u.City)
	set("state", u.State)
	set("zip", u.Zip)
	set("phone", u.Phone)

	if u.Name != nil && *u.Name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidSettings)
	}
	if u.AdditionalEmails != nil {
		f["additionalEmails"] = nonNil(*u.AdditionalEmails)
	}
	if u.ViolationTypes != nil {
		if len(*u.ViolationTypes) == 0 {
			return nil, fmt.Errorf("%w: at least one violation type is required", ErrInvalidSettings)
		}
		f["violationTypes"] = *u.ViolationTypes
	}
	if u.Branding != nil {
		f["branding"] = *u.Branding
	}
	return f, nil
}

func (s *Service) UpdateSettings(ctx context.Context, slug string, upd SettingsUpdate) (*models.HOA, error) {
	fields, err := upd.fields()
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.update(ctx, slug, fields); err != nil {
			return nil, err
		}
	}
	return s.loadHOA(ctx, slug)
}

// HOAUpdate is the super-admin edit: the settings plus the admin contact and
// subscription status.
type HOAUpdate struct {
	SettingsUpdate
	AdminEmail         *string                    `json:"adminEmail,omitempty"`
	SubscriptionStatus *models.SubscriptionStatus `json:"subscriptionStatus,omitempty"`
}

func (u HOAUpdate) fields() (map[string]interface{}, error) {
	f, err := u.SettingsUpdate.fields()
	if err != nil {
		return nil, err
	}
	if u.AdminEmail != nil {
		if strings.TrimSpace(*u.AdminEmail) == "" {
			return nil, fmt.Errorf("%w: admin email must not be empty", ErrInvalidSettings)
		}
		f["adminEmail"] = *u.AdminEmail
	}
	if u.SubscriptionStatus != nil {
		if !u.SubscriptionStatus.Valid() {
			return nil, fmt.Errorf("%w: unknown subscription status %q", ErrInvalidSettings, *u.SubscriptionStatus)
		}
		f["subscriptionStatus"] = *u.SubscriptionStatus
	}
	return f, nil
}

// UpdateHOA merges upd into the record; fields left nil keep their values.
func (s *Service) UpdateHOA(ctx context.Context, slug string, upd HOAUpdate) (*models.HOA, error) {
	fields, err := upd.fields()
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.update(ctx, slug, fields); err != nil {
			return nil, err
		}
	}
	return s.loadHOA(ctx, slug)
}

func (s *Service) SetSubscriptionStatus(ctx context.Context, slug string, status models.SubscriptionStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown subscription status %q", ErrInvalidSettings, status)
	}
	return s.update(ctx, slug, map[string]interface{}{"subscriptionStatus": status})
}

func (s *Service) update(ctx context.Context, slug string, fields map[string]interface{}) error {
	err := s.store.Update(ctx, CollectionHOAs, slug, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrHOANotFound
	}
	if err != nil {
		return fmt.Errorf("update hoa: %w", err)
	}
	s.invalidate(ctx, slug)
	return nil
}

// DeleteHOA removes the HOA record only. Users and violations that reference
// the slug are left in place.
func (s *Service) DeleteHOA(ctx context.Context, slug string) error {
	exists, err := s.store.Exists(ctx, CollectionHOAs, slug)
	if err != nil {
		return fmt.Errorf("check hoa: %w", err)
	}
	if !exists {
		return ErrHOANotFound
	}
	if err := s.store.Delete(ctx, CollectionHOAs, slug); err != nil {
		return fmt.Errorf("delete hoa: %w", err)
	}
	s.invalidate(ctx, slug)
	return nil
}

func (s *Service) invalidate(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, hoaCacheKey(slug)); err != nil {
		slog.Warn("hoa cache invalidation failed", "slug", slug, "error", err)
	}
}

func hoaCacheKey(slug string) string {
	return "hoa:" + slug
}

// writable strips store-owned timestamps before a write.
func writable(hoa *models.HOA) models.HOA {
	out := *hoa
	out.CreatedAt = time.Time{}
	out.UpdatedAt = time.Time{}
	out.AdditionalEmails = nonNil(out.AdditionalEmails)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func DecodeHOA(doc *docstore.Document) (*models.HOA, error) {
	var hoa models.HOA
	if err := doc.Decode(&hoa); err != nil {
		return nil, fmt.Errorf("decode hoa %s: %w", doc.Key, err)
	}
	hoa.Slug = doc.Key
	hoa.CreatedAt = doc.CreatedAt
	hoa.UpdatedAt = doc.UpdatedAt
	return &hoa, nil
}

func DecodeHOAs(docs []docstore.Document) ([]models.HOA, error) {
	out := make([]models.HOA, 0, len(docs))
	for i := range docs {
		hoa, err := DecodeHOA(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *hoa)
	}
	return out, nil
}
