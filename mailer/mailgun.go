package mailer

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunConfig configures the Mailgun transport.
type MailgunConfig struct {
	Domain string
	APIKey string
	Sender Sender
}

// Mailgun sends email through the Mailgun API.
type Mailgun struct {
	mg     *mailgun.MailgunImpl
	sender Sender
}

// NewMailgun creates a Mailgun mailer.
func NewMailgun(cfg MailgunConfig) *Mailgun {
	cfg.Sender.defaults()
	return &Mailgun{
		mg:     mailgun.NewMailgun(cfg.Domain, cfg.APIKey),
		sender: cfg.Sender,
	}
}

// Send delivers one HTML email. The returned error is final for this
// attempt.
func (m *Mailgun) Send(ctx context.Context, toEmail, toName, subject, htmlBody string) error {
	msg := m.mg.NewMessage(m.sender.From(), subject, "", fmt.Sprintf("%s <%s>", toName, toEmail))
	msg.SetHtml(htmlBody)
	if _, _, err := m.mg.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailgun send to %s: %w", toEmail, err)
	}
	return nil
}
