package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CommunicationStatus represents the lifecycle state of a communication.
type CommunicationStatus string

const (
	CommunicationStatusDraft     CommunicationStatus = "draft"
	CommunicationStatusScheduled CommunicationStatus = "scheduled"
	CommunicationStatusSending   CommunicationStatus = "sending"
	CommunicationStatusSent      CommunicationStatus = "sent"
)

// DeliverySummary aggregates the outcome of one dispatch run.
// It is only stored on the communication after dispatch ran to completion.
type DeliverySummary struct {
	Email     int      `json:"email"`
	MassEmail int      `json:"mass_email"`
	SMS       int      `json:"sms"`
	InApp     int      `json:"in_app"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// SentCount returns the total successful deliveries across channels.
func (s *DeliverySummary) SentCount() int {
	return s.Email + s.MassEmail + s.SMS + s.InApp
}

// Communication is a message intended for broadcast to one or more
// recipient groups over one or more channels.
//
// RecipientGroups and Channels persist the submitted wire form so a
// scheduled communication is dispatched later with identical inputs.
type Communication struct {
	ID              uuid.UUID           `json:"id"`
	Title           string              `json:"title"`
	Content         string              `json:"content"`
	SenderID        uuid.UUID           `json:"sender_id"`
	SenderName      string              `json:"sender_name"`
	Type            string              `json:"type"`     // e.g. "announcement", "excuse_request"
	Priority        string              `json:"priority"` // e.g. "normal", "urgent"
	Status          CommunicationStatus `json:"status"`
	RecipientGroups json.RawMessage     `json:"recipient_groups"`
	Channels        []Channel           `json:"channels"`
	ScheduledFor    *time.Time          `json:"scheduled_for,omitempty"`
	ExpiresAt       *time.Time          `json:"expires_at,omitempty"`
	SentAt          *time.Time          `json:"sent_at,omitempty"`
	DeliverySummary *DeliverySummary    `json:"delivery_summary,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// NewCommunication creates a communication in its initial status.
// A future scheduledFor puts it in "scheduled"; otherwise it goes
// straight to "sending" for immediate dispatch.
func NewCommunication(
	title, content string,
	senderID uuid.UUID,
	senderName, commType, priority string,
	recipientGroups json.RawMessage,
	channels []Channel,
	scheduledFor *time.Time,
	now time.Time,
) *Communication {
	status := CommunicationStatusSending
	if scheduledFor != nil && scheduledFor.After(now) {
		status = CommunicationStatusScheduled
	}
	return &Communication{
		ID:              uuid.New(),
		Title:           title,
		Content:         content,
		SenderID:        senderID,
		SenderName:      senderName,
		Type:            commType,
		Priority:        priority,
		Status:          status,
		RecipientGroups: recipientGroups,
		Channels:        channels,
		ScheduledFor:    scheduledFor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
