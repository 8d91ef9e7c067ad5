package onboarding

import (
	"strings"
)

// Form is what a prospective HOA admin submits to sign up.
type Form struct {
	HOAName        string   `json:"hoaName"`
	HOAAddress     string   `json:"hoaAddress"`
	HOACity        string   `json:"hoaCity"`
	HOAState       string   `json:"hoaState"`
	HOAZip         string   `json:"hoaZip"`
	HOAPhone       string   `json:"hoaPhone"`
	AdminFirstName string   `json:"adminFirstName"`
	AdminLastName  string   `json:"adminLastName"`
	AdminEmail     string   `json:"adminEmail"`
	AdminPassword  string   `json:"adminPassword"`
	ViolationTypes []string `json:"violationTypes,omitempty"`
	PrimaryColor   string   `json:"primaryColor,omitempty"`
	LogoURL        string   `json:"logoUrl,omitempty"`
}

// missing lists required fields that are empty, in form order.
func (f *Form) missing() []string {
	required := []struct {
		name  string
		value string
	}{
		{"hoaName", f.HOAName},
		{"hoaAddress", f.HOAAddress},
		{"hoaCity", f.HOACity},
		{"hoaState", f.HOAState},
		{"hoaZip", f.HOAZip},
		{"hoaPhone", f.HOAPhone},
		{"adminFirstName", f.AdminFirstName},
		{"adminLastName", f.AdminLastName},
		{"adminEmail", f.AdminEmail},
		{"adminPassword", f.AdminPassword},
	}
	var out []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			out = append(out, r.name)
		}
	}
	return out
}

// Result identifies what a successful onboarding created.
type Result struct {
	TenantSlug  string `json:"hoaId"`
	PrincipalID string `json:"userId"`
}
