package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/models"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/notify"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/queue"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/tenant"
	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/violation"
)

type HOAReader interface {
	GetHOA(ctx context.Context, slug string) (*models.HOA, error)
}

type ViolationReader interface {
	Get(ctx context.Context, slug, id string) (*models.Violation, error)
}

// EmailWorker renders and sends the emails queued by the API.
type EmailWorker struct {
	hoas       HOAReader
	violations ViolationReader
	renderer   *notify.Renderer
	mailer     notify.Mailer
}

func NewEmailWorker(hoas HOAReader, violations ViolationReader, renderer *notify.Renderer, mailer notify.Mailer) *EmailWorker {
	return &EmailWorker{hoas: hoas, violations: violations, renderer: renderer, mailer: mailer}
}

func (w *EmailWorker) Register(r *queue.HandlersRegistry) {
	r.Register(queue.TypeViolationNotification, asynq.HandlerFunc(w.ProcessViolationNotification))
	r.Register(queue.TypeResidentNotice, asynq.HandlerFunc(w.ProcessResidentNotice))
	r.Register(queue.TypeSubscriptionEmail, asynq.HandlerFunc(w.ProcessSubscriptionEmail))
}

func (w *EmailWorker) ProcessViolationNotification(ctx context.Context, t *asynq.Task) error {
	var payload queue.ViolationNotificationPayload
	if err := decode(t, &payload); err != nil {
		return err
	}

	hoa, v, err := w.load(ctx, payload.HOAID, payload.ViolationID)
	if err != nil {
		return err
	}
	if len(hoa.NotificationEmails()) == 0 {
		slog.Warn("hoa has no notification addresses", "hoa", hoa.Slug)
		return nil
	}

	msg, err := w.renderer.ViolationNotification(hoa, v)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return w.mailer.Send(ctx, msg)
}

func (w *EmailWorker) ProcessResidentNotice(ctx context.Context, t *asynq.Task) error {
	var payload queue.ResidentNoticePayload
	if err := decode(t, &payload); err != nil {
		return err
	}

	hoa, v, err := w.load(ctx, payload.HOAID, payload.ViolationID)
	if err != nil {
		return err
	}

	msg, err := w.renderer.ResidentNotice(hoa, v, payload.Recipient, payload.Subject, payload.Message)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return w.mailer.Send(ctx, msg)
}

func (w *EmailWorker) ProcessSubscriptionEmail(ctx context.Context, t *asynq.Task) error {
	var payload queue.SubscriptionEmailPayload
	if err := decode(t, &payload); err != nil {
		return err
	}

	hoa, err := w.hoas.GetHOA(ctx, payload.HOAID)
	if errors.Is(err, tenant.ErrHOANotFound) {
		return fmt.Errorf("hoa %s: %w", payload.HOAID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("get hoa: %w", err)
	}

	msg, err := w.renderer.Subscription(hoa, payload.Kind)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return w.mailer.Send(ctx, msg)
}

// load fetches the records an email refers to. Records deleted since the
// task was queued are not retried.
func (w *EmailWorker) load(ctx context.Context, slug, id string) (*models.HOA, *models.Violation, error) {
	hoa, err := w.hoas.GetHOA(ctx, slug)
	if errors.Is(err, tenant.ErrHOANotFound) {
		return nil, nil, fmt.Errorf("hoa %s: %w", slug, asynq.SkipRetry)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get hoa: %w", err)
	}

	v, err := w.violations.Get(ctx, slug, id)
	if errors.Is(err, violation.ErrNotFound) {
		return nil, nil, fmt.Errorf("violation %s: %w", id, asynq.SkipRetry)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get violation: %w", err)
	}
	return hoa, v, nil
}

func decode(t *asynq.Task, dest interface{}) error {
	if err := json.Unmarshal(t.Payload(), dest); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}
