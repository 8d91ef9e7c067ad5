package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/Kibutznik1978/HOA-Violation-Tracker/internal/config"
)

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// plainFallback is the text part sent alongside every HTML body.
const plainFallback = "This message is best viewed in an HTML-capable email client."

// MailgunMailer delivers messages through the Mailgun HTTP API.
type MailgunMailer struct {
	mg   *mailgun.MailgunImpl
	from string
}

func NewMailgunMailer(cfg config.EmailConfig) *MailgunMailer {
	mg := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey)
	if cfg.MailgunAPIBase != "" {
		mg.SetAPIBase(cfg.MailgunAPIBase)
	}
	return &MailgunMailer{mg: mg, from: cfg.From}
}

func (m *MailgunMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("send email: no recipients")
	}
	message := m.mg.NewMessage(m.from, msg.Subject, plainFallback, msg.To...)
	message.SetHtml(msg.HTML)

	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	slog.Debug("email sent", "id", id, "subject", msg.Subject)
	return nil
}

// LogMailer only logs messages. Used when EMAIL_PROVIDER is "log".
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	slog.Info("email not sent, delivery disabled", "to", msg.To, "subject", msg.Subject)
	return nil
}

// NewMailer picks the delivery backend named by cfg.Provider.
func NewMailer(cfg config.EmailConfig) (Mailer, error) {
	switch cfg.Provider {
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
			return nil, errors.New("mailgun requires MAILGUN_DOMAIN and MAILGUN_API_KEY")
		}
		return NewMailgunMailer(cfg), nil
	case "log", "":
		return LogMailer{}, nil
	default:
		return nil, fmt.Errorf("unknown EMAIL_PROVIDER %q", cfg.Provider)
	}
}
