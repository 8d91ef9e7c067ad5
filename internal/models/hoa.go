package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "trial"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionPending  SubscriptionStatus = "pending"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionTrial, SubscriptionActive, SubscriptionInactive, SubscriptionPending:
		return true
	}
	return false
}

// DefaultViolationTypes is applied to a new HOA that supplies none.
var DefaultViolationTypes = []string{
	"Landscaping/Yard Maintenance",
	"Architectural Violations",
	"Parking Violations",
	"Pet Policy Violations",
	"Noise Complaints",
	"Trash/Recycling Issues",
	"Pool/Amenity Violations",
	"Commercial Activity",
}

const DefaultPrimaryColor = "#3B82F6"

type Branding struct {
	PrimaryColor string `json:"primaryColor"`
	LogoURL      string `json:"logoUrl"`
}

// HOA is a tenant record, stored under its slug. CreatedAt and UpdatedAt
// come from the store and are never written by callers.
type HOA struct {
	Slug               string             `json:"slug"`
	Name               string             `json:"name"`
	Address            string             `json:"address"`
	City               string             `json:"city"`
	State              string             `json:"state"`
	Zip                string             `json:"zip"`
	Phone              string             `json:"phone"`
	AdminEmail         string             `json:"adminEmail"`
	AdminUID           string             `json:"adminUid,omitempty"`
	AdditionalEmails   []string           `json:"additionalEmails"`
	ViolationTypes     []string           `json:"violationTypes"`
	Branding           Branding           `json:"branding"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	SubscriptionID     string             `json:"subscriptionId,omitempty"`
	TrialEndsAt        time.Time          `json:"trialEndsAt,omitzero"`
	CreatedAt          time.Time          `json:"createdAt,omitzero"`
	UpdatedAt          time.Time          `json:"updatedAt,omitzero"`
}

// NotificationEmails is the admin email followed by the additional emails.
func (h *HOA) NotificationEmails() []string {
	out := make([]string, 0, 1+len(h.AdditionalEmails))
	if h.AdminEmail != "" {
		out = append(out, h.AdminEmail)
	}
	for _, e := range h.AdditionalEmails {
		if e != "" && e != h.AdminEmail {
			out = append(out, e)
		}
	}
	return out
}

func (h *HOA) HasViolationType(t string) bool {
	for _, v := range h.ViolationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// PublicHOA is what residents see on the report form.
type PublicHOA struct {
	Slug           string   `json:"slug"`
	Name           string   `json:"name"`
	ViolationTypes []string `json:"violationTypes"`
	Branding       Branding `json:"branding"`
}

func (h *HOA) Public() PublicHOA {
	return PublicHOA{Slug: h.Slug, Name: h.Name, ViolationTypes: h.ViolationTypes, Branding: h.Branding}
}
