package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/docstore"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/notify"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/queue"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/storage"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/violation"
)

type recordingMailer struct {
	sent []notify.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg notify.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	worker     *EmailWorker
	mailer     *recordingMailer
	violations *violation.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	tenants := tenant.NewService(store)
	require.NoError(t, tenants.CreateHOA(context.Background(), &models.HOA{
		Slug:             "acme",
		Name:             "Acme",
		AdminEmail:       "admin@acme.example",
		AdditionalEmails: []string{"board@acme.example"},
		ViolationTypes:   []string{"Noise Complaints"},
	}))

	violations := violation.NewService(store, tenants, storage.NewMemoryStorage("https://files.example"))
	renderer, err := notify.NewRenderer("https://app.example")
	require.NoError(t, err)
	mailer := &recordingMailer{}

	return &fixture{
		worker:     NewEmailWorker(tenants, violations, renderer, mailer),
		mailer:     mailer,
		violations: violations,
	}
}

func (f *fixture) submit(t *testing.T) *models.Violation {
	t.Helper()
	v, err := f.violations.Submit(context.Background(), "acme", violation.Submission{
		Type:        "Noise Complaints",
		Address:     "4 Birch Ct",
		Description: "Band practice at 2am",
	})
	require.NoError(t, err)
	return v
}

func task(t *testing.T, typ string, payload interface{}) *asynq.Task {
	t.Helper()
	tk, err := queue.NewTask(typ, payload)
	require.NoError(t, err)
	return tk
}

func TestViolationNotification(t *testing.T) {
	f := newFixture(t)
	v := f.submit(t)

	err := f.worker.ProcessViolationNotification(context.Background(),
		task(t, queue.TypeViolationNotification, queue.ViolationNotificationPayload{HOAID: "acme", ViolationID: v.ID}))
	require.NoError(t, err)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []string{"admin@acme.example", "board@acme.example"}, f.mailer.sent[0].To)
	assert.Equal(t, "New Violation Report - Noise Complaints", f.mailer.sent[0].Subject)
}

func TestViolationNotificationMissingRecordsSkipRetry(t *testing.T) {
	f := newFixture(t)

	err := f.worker.ProcessViolationNotification(context.Background(),
		task(t, queue.TypeViolationNotification, queue.ViolationNotificationPayload{HOAID: "acme", ViolationID: "gone"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = f.worker.ProcessViolationNotification(context.Background(),
		task(t, queue.TypeViolationNotification, queue.ViolationNotificationPayload{HOAID: "ghost", ViolationID: "x"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = f.worker.ProcessViolationNotification(context.Background(),
		asynq.NewTask(queue.TypeViolationNotification, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, f.mailer.sent)
}

func TestResidentNotice(t *testing.T) {
	f := newFixture(t)
	v := f.submit(t)

	err := f.worker.ProcessResidentNotice(context.Background(), task(t, queue.TypeResidentNotice, queue.ResidentNoticePayload{
		HOAID:       "acme",
		ViolationID: v.ID,
		Recipient:   "owner@example.com",
		Subject:     "Quiet hours",
		Message:     "Please keep it down.",
	}))
	require.NoError(t, err)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []string{"owner@example.com"}, f.mailer.sent[0].To)
	assert.Equal(t, "Quiet hours", f.mailer.sent[0].Subject)
	assert.Contains(t, f.mailer.sent[0].HTML, "Please keep it down.")
}

func TestSubscriptionEmail(t *testing.T) {
	f := newFixture(t)

	err := f.worker.ProcessSubscriptionEmail(context.Background(),
		task(t, queue.TypeSubscriptionEmail, queue.SubscriptionEmailPayload{HOAID: "acme", Kind: queue.EmailWelcome}))
	require.NoError(t, err)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, []string{"admin@acme.example"}, f.mailer.sent[0].To)

	err = f.worker.ProcessSubscriptionEmail(context.Background(),
		task(t, queue.TypeSubscriptionEmail, queue.SubscriptionEmailPayload{HOAID: "acme", Kind: "bogus"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSendFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("mailgun timeout")

	err := f.worker.ProcessSubscriptionEmail(context.Background(),
		task(t, queue.TypeSubscriptionEmail, queue.SubscriptionEmailPayload{HOAID: "acme", Kind: queue.EmailSubscriptionCancelled}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	r := queue.NewHandlersRegistry()
	f.worker.Register(r)

	err := r.Mux().ProcessTask(context.Background(),
		task(t, queue.TypeSubscriptionEmail, queue.SubscriptionEmailPayload{HOAID: "acme", Kind: queue.EmailWelcome}))
	require.NoError(t, err)
	assert.Len(t, f.mailer.sent, 1)
}
