package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/config"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
)

func testHOA() *models.HOA {
	return &models.HOA{
		Slug:             "acme",
		Name:             "Acme Heights",
		AdminEmail:       "admin@acme.example",
		AdditionalEmails: []string{"board@acme.example"},
		TrialEndsAt:      time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func testViolation() *models.Violation {
	return &models.Violation{
		ID:            "v1",
		HOAID:         "acme",
		Type:          "Parking Violations",
		Address:       "12 Elm St",
		Description:   "Boat <on> lawn",
		Photos:        []string{"https://files.example/a.jpg"},
		ReporterEmail: "neighbor@example.com",
		Status:        models.ViolationPending,
		CreatedAt:     time.Date(2025, 3, 2, 15, 4, 0, 0, time.UTC),
	}
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("https://app.example/")
	require.NoError(t, err)
	return r
}

func TestViolationNotification(t *testing.T) {
	msg, err := newRenderer(t).ViolationNotification(testHOA(), testViolation())
	require.NoError(t, err)

	assert.Equal(t, []string{"admin@acme.example", "board@acme.example"}, msg.To)
	assert.Equal(t, "New Violation Report - Parking Violations", msg.Subject)
	assert.Contains(t, msg.HTML, "Boat &lt;on&gt; lawn")
	assert.Contains(t, msg.HTML, `href="https://files.example/a.jpg"`)
	assert.Contains(t, msg.HTML, "Photo 1")
	assert.Contains(t, msg.HTML, "neighbor@example.com")
	assert.Contains(t, msg.HTML, "Mar 2, 2025 3:04 PM UTC")
	assert.Contains(t, msg.HTML, "https://app.example/acme/admin")
	assert.NotContains(t, msg.HTML, "Reporter Phone")
}

func TestResidentNotice(t *testing.T) {
	msg, err := newRenderer(t).ResidentNotice(testHOA(), testViolation(), "owner@example.com", "Notice", "Line one\nLine <two>")
	require.NoError(t, err)

	assert.Equal(t, []string{"owner@example.com"}, msg.To)
	assert.Equal(t, "Notice", msg.Subject)
	assert.Contains(t, msg.HTML, "Line one<br>Line &lt;two&gt;")
	assert.Contains(t, msg.HTML, "View Photo 1")
}

func TestSubscription(t *testing.T) {
	r := newRenderer(t)

	msg, err := r.Subscription(testHOA(), "welcome")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@acme.example"}, msg.To)
	assert.Equal(t, "Welcome to HOA Violation Tracker", msg.Subject)
	assert.Contains(t, msg.HTML, "Acme Heights")
	assert.Contains(t, msg.HTML, "March 15, 2025")

	msg, err = r.Subscription(testHOA(), "subscription_cancelled")
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Subscription Cancelled")

	for _, kind := range []string{"upsell", "payment_failed"} {
		_, err = r.Subscription(testHOA(), kind)
		assert.Error(t, err, kind)
	}
}

func TestMailgunMailer(t *testing.T) {
	var (
		path    string
		user    string
		key     string
		form    url.Values
		handled bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled = true
		path = r.URL.Path
		user, key, _ = r.BasicAuth()
		_ = r.ParseMultipartForm(1 << 20)
		form = r.Form
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"<20250102.1@mg.example.com>","message":"Queued. Thank you."}`))
	}))
	defer srv.Close()

	m, err := NewMailer(config.EmailConfig{
		Provider:       "mailgun",
		From:           "HOA Tracker <noreply@mg.example.com>",
		MailgunDomain:  "mg.example.com",
		MailgunAPIKey:  "key-123",
		MailgunAPIBase: srv.URL + "/v3",
	})
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Café notice",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	require.True(t, handled)

	assert.True(t, strings.HasSuffix(path, "/mg.example.com/messages"), path)
	assert.Equal(t, "api", user)
	assert.Equal(t, "key-123", key)
	assert.Equal(t, "HOA Tracker <noreply@mg.example.com>", form.Get("from"))
	assert.Equal(t, "Café notice", form.Get("subject"))
	assert.Equal(t, "<p>hi</p>", form.Get("html"))
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, form["to"])
}

func TestMailgunMailerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Domain not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	m := NewMailgunMailer(config.EmailConfig{
		From:           "noreply@mg.example.com",
		MailgunDomain:  "mg.example.com",
		MailgunAPIKey:  "key-123",
		MailgunAPIBase: srv.URL + "/v3",
	})

	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "s", HTML: "<p>x</p>"})
	assert.ErrorContains(t, err, "send email")

	err = m.Send(context.Background(), Message{Subject: "s"})
	assert.ErrorContains(t, err, "no recipients")
}

func TestNewMailer(t *testing.T) {
	m, err := NewMailer(config.EmailConfig{Provider: "log"})
	require.NoError(t, err)
	assert.IsType(t, LogMailer{}, m)
	assert.NoError(t, m.Send(context.Background(), Message{To: []string{"a@example.com"}}))

	_, err = NewMailer(config.EmailConfig{Provider: "mailgun"})
	assert.ErrorContains(t, err, "MAILGUN_DOMAIN")

	_, err = NewMailer(config.EmailConfig{Provider: "smtp"})
	assert.ErrorContains(t, err, "smtp")
}
