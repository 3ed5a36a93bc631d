package senders

import "context"

// BulkRecipient is one individually-addressed recipient of a bulk send.
type BulkRecipient struct {
	Email string
	Name  string
}

// EmailSender sends one transactional email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
	GetName() string
}

// BulkEmailSender sends through the bulk email provider path, addressed
// individually to each recipient.
type BulkEmailSender interface {
	Send(ctx context.Context, subject, content string, recipients []BulkRecipient) error
	GetName() string
}

// SMSSender sends one SMS message.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
	GetName() string
}
