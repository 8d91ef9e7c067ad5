package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
)

func TestRegisterDefaults(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	hoa, err := f.orchestrator(nil, Config{}).Register(ctx, Registration{
		Name:       "Cedar Point HOA",
		Address:    "9 Cedar Ln",
		AdminEmail: "board@cedar.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "cedar-point-hoa", hoa.Slug)

	stored, err := f.tenants.GetHOA(ctx, "cedar-point-hoa")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPending, stored.SubscriptionStatus)
	assert.True(t, stored.TrialEndsAt.IsZero())
	assert.Empty(t, stored.AdminUID)
	assert.Equal(t, []string{}, stored.AdditionalEmails)
	assert.Equal(t, models.DefaultViolationTypes, stored.ViolationTypes)
	assert.Equal(t, models.DefaultPrimaryColor, stored.Branding.PrimaryColor)
}

func TestRegisterKeepsSuppliedFields(t *testing.T) {
	f := newFixture()
	f.seedHOA(t, "cedar-point-hoa")

	hoa, err := f.orchestrator(nil, Config{}).Register(context.Background(), Registration{
		Name:               "Cedar Point HOA",
		AdminEmail:         "board@cedar.example",
		AdditionalEmails:   []string{"pres@cedar.example"},
		ViolationTypes:     []string{"Parking"},
		SubscriptionStatus: models.SubscriptionActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "cedar-point-hoa-1", hoa.Slug)
	assert.Equal(t, models.SubscriptionActive, hoa.SubscriptionStatus)
	assert.Equal(t, []string{"pres@cedar.example"}, hoa.AdditionalEmails)
	assert.Equal(t, []string{"Parking"}, hoa.ViolationTypes)
}

func TestRegisterRetriesAfterConcurrentClaim(t *testing.T) {
	f := newFixture()
	rs := &racingStore{Service: f.tenants}

	hoa, err := f.orchestrator(rs, Config{}).Register(context.Background(), Registration{
		Name:       "Maple Grove HOA",
		AdminEmail: "board@maple.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "maple-grove-hoa-1", hoa.Slug)
}

func TestRegisterInvalidInput(t *testing.T) {
	o := newFixture().orchestrator(nil, Config{})
	ctx := context.Background()

	_, err := o.Register(ctx, Registration{Name: "Cedar"})
	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindInvalidInput, oe.Kind)
	assert.Contains(t, oe.Message, "adminEmail")

	_, err = o.Register(ctx, Registration{Name: "***", AdminEmail: "a@example.com"})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = o.Register(ctx, Registration{Name: "Cedar", AdminEmail: "a@example.com", SubscriptionStatus: "lapsed"})
	assert.Equal(t, KindInvalidInput, KindOf(err))
}
