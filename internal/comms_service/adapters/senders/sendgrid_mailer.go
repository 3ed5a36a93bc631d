package senders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer is the bulk email provider path. Each recipient gets
// its own personalization so addressing stays individual.
type SendGridMailer struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
	logger    *slog.Logger
}

// NewSendGridMailer creates a SendGridMailer.
func NewSendGridMailer(apiKey, fromName, fromEmail string, logger *slog.Logger) *SendGridMailer {
	return &SendGridMailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
		logger:    logger.With("sender", "sendgrid"),
	}
}

func (m *SendGridMailer) GetName() string { return "sendgrid" }

func (m *SendGridMailer) Send(ctx context.Context, subject, content string, recipients []BulkRecipient) error {
	if len(recipients) == 0 {
		return nil
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(m.fromName, m.fromEmail))
	message.Subject = subject
	message.AddContent(mail.NewContent("text/plain", content))

	for _, r := range recipients {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail(r.Name, r.Email))
		message.AddPersonalizations(p)
	}

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		m.logger.DebugContext(ctx, "SendGrid API rejected send", "status_code", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("sendgrid API error: status %d", resp.StatusCode)
	}
	return nil
}
