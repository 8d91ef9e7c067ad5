package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
)

// PutUser creates or replaces the user record keyed by u.ID.
func (s *Service) PutUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		return fmt.Errorf("%w: missing principal id", ErrInvalidUser)
	}
	rec := *u
	rec.CreatedAt = time.Time{}
	rec.UpdatedAt = time.Time{}
	if err := s.store.Put(ctx, CollectionUsers, u.ID, rec); err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	doc, err := s.store.Get(ctx, CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return decodeUser(doc)
}

// ListUsers returns all users, or only those of hoaID when it is set.
func (s *Service) ListUsers(ctx context.Context, hoaID string) ([]models.User, error) {
	q := docstore.Query{Collection: CollectionUsers, OrderBy: docstore.OrderByCreated, Desc: true}
	if hoaID != "" {
		q.Where = []docstore.Filter{{Field: "hoaId", Value: hoaID}}
	}
	docs, err := s.store.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]models.User, 0, len(docs))
	for i := range docs {
		u, err := decodeUser(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

type UserUpdate struct {
	FirstName *string      `json:"firstName,omitempty"`
	LastName  *string      `json:"lastName,omitempty"`
	Role      *models.Role `json:"role,omitempty"`
	HOAID     *string      `json:"hoaId,omitempty"`
}

// UpdateUser applies upd after checking the resulting role/HOA pairing: a
// hoa_admin must point at an existing HOA and a super_admin has no HOA.
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (*models.User, error) {
	current, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	role := current.Role
	if upd.Role != nil {
		role = *upd.Role
	}
	hoaID := current.HOAID
	if upd.HOAID != nil {
		hoaID = *upd.HOAID
	}

	fields := map[string]interface{}{}
	if upd.FirstName != nil {
		fields["firstName"] = *upd.FirstName
	}
	if upd.LastName != nil {
		fields["lastName"] = *upd.LastName
	}

	switch role {
	case models.RoleSuperAdmin:
		fields["role"] = role
		fields["hoaId"] = nil
	case models.RoleHOAAdmin:
		if err := s.requireHOA(ctx, hoaID); err != nil {
			return nil, err
		}
		fields["role"] = role
		fields["hoaId"] = hoaID
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}

	err = s.store.Update(ctx, CollectionUsers, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *Service) requireHOA(ctx context.Context, slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: hoa_admin requires an hoaId", ErrInvalidUser)
	}
	exists, err := s.store.Exists(ctx, CollectionHOAs, slug)
	if err != nil {
		return fmt.Errorf("check hoa: %w", err)
	}
	if !exists {
		return ErrHOANotFound
	}
	return nil
}

// ValidateUser checks role/HOA pairing for a new user record.
func (s *Service) ValidateUser(ctx context.Context, u *models.User) error {
	switch u.Role {
	case models.RoleSuperAdmin:
		if u.HOAID != "" {
			return fmt.Errorf("%w: super_admin cannot belong to an hoa", ErrInvalidUser)
		}
		return nil
	case models.RoleHOAAdmin:
		return s.requireHOA(ctx, u.HOAID)
	}
	return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	exists, err := s.store.Exists(ctx, CollectionUsers, id)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	if err := s.store.Delete(ctx, CollectionUsers, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func decodeUser(doc *docstore.Document) (*models.User, error) {
	var u models.User
	if err := doc.Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", doc.Key, err)
	}
	u.ID = doc.Key
	u.CreatedAt = doc.CreatedAt
	u.UpdatedAt = doc.UpdatedAt
	return &u, nil
}
