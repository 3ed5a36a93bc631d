package senders

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
)

// MockEmailSender is a simulated transactional email sender for
// development and tests. failRate is the chance of a simulated failure
// (0.0 to 1.0).
type MockEmailSender struct {
	logger   *slog.Logger
	name     string
	failRate float64

	mu   sync.Mutex
	Sent []string // recipients of successful sends, in order
}

// NewMockEmailSender creates a MockEmailSender.
func NewMockEmailSender(logger *slog.Logger, name string, failRate float64) *MockEmailSender {
	if name == "" {
		name = "mock-email"
	}
	return &MockEmailSender{logger: logger.With("sender", name), name: name, failRate: failRate}
}

func (m *MockEmailSender) GetName() string { return m.name }

func (m *MockEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rand.Float64() < m.failRate {
		m.logger.WarnContext(ctx, "MockEmailSender simulated failure", "to", to)
		return fmt.Errorf("%s: simulated failure for %s", m.name, to)
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, to)
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "MockEmailSender: email sent (simulated)", "to", to, "subject", subject)
	return nil
}

// MockBulkEmailSender is a simulated bulk email sender.
type MockBulkEmailSender struct {
	logger   *slog.Logger
	name     string
	failRate float64

	mu   sync.Mutex
	Sent []string
}

// NewMockBulkEmailSender creates a MockBulkEmailSender.
func NewMockBulkEmailSender(logger *slog.Logger, name string, failRate float64) *MockBulkEmailSender {
	if name == "" {
		name = "mock-bulk-email"
	}
	return &MockBulkEmailSender{logger: logger.With("sender", name), name: name, failRate: failRate}
}

func (m *MockBulkEmailSender) GetName() string { return m.name }

func (m *MockBulkEmailSender) Send(ctx context.Context, subject, content string, recipients []BulkRecipient) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rand.Float64() < m.failRate {
		m.logger.WarnContext(ctx, "MockBulkEmailSender simulated failure", "recipients", len(recipients))
		return fmt.Errorf("%s: simulated failure", m.name)
	}
	m.mu.Lock()
	for _, r := range recipients {
		m.Sent = append(m.Sent, r.Email)
	}
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "MockBulkEmailSender: batch sent (simulated)", "recipients", len(recipients), "subject", subject)
	return nil
}

// MockSMSSender is a simulated SMS sender.
type MockSMSSender struct {
	logger   *slog.Logger
	name     string
	failRate float64

	mu   sync.Mutex
	Sent []string
}

// NewMockSMSSender creates a MockSMSSender.
func NewMockSMSSender(logger *slog.Logger, name string, failRate float64) *MockSMSSender {
	if name == "" {
		name = "mock-sms"
	}
	return &MockSMSSender{logger: logger.With("sender", name), name: name, failRate: failRate}
}

func (m *MockSMSSender) GetName() string { return m.name }

func (m *MockSMSSender) Send(ctx context.Context, to, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rand.Float64() < m.failRate {
		m.logger.WarnContext(ctx, "MockSMSSender simulated failure", "to", to)
		return fmt.Errorf("%s: simulated failure for %s", m.name, to)
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, to)
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "MockSMSSender: SMS sent (simulated)", "to", to, "message_len", len(message))
	return nil
}
