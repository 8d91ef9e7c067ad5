package models

import "time"

type Role string

const (
	RoleHOAAdmin   Role = "hoa_admin"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	return r == RoleHOAAdmin || r == RoleSuperAdmin
}

// User is keyed by the identity provider's principal ID. HOAID is set only
// for hoa_admin.
type User struct {
	ID        string    `json:"id,omitempty"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	HOAID     string    `json:"hoaId,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
