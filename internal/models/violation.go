package models

import "time"

type ViolationStatus string

const (
	ViolationPending     ViolationStatus = "pending"
	ViolationUnderReview ViolationStatus = "under_review"
	ViolationResolved    ViolationStatus = "resolved"
	ViolationDismissed   ViolationStatus = "dismissed"
)

func (s ViolationStatus) Valid() bool {
	switch s {
	case ViolationPending, ViolationUnderReview, ViolationResolved, ViolationDismissed:
		return true
	}
	return false
}

type Violation struct {
	ID            string          `json:"id"`
	HOAID         string          `json:"hoaId"`
	Type          string          `json:"type"`
	Address       string          `json:"address"`
	Description   string          `json:"description"`
	Photos        []string        `json:"photos"`
	PhotoPaths    []string        `json:"photoPaths,omitempty"`
	ReporterEmail string          `json:"reporterEmail,omitempty"`
	ReporterPhone string          `json:"reporterPhone,omitempty"`
	Status        ViolationStatus `json:"status"`
	AdminNotes    string          `json:"adminNotes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt,omitzero"`
	UpdatedAt     time.Time       `json:"updatedAt,omitzero"`
}
