package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelMassEmail Channel = "mass_email"
	ChannelSMS       Channel = "sms"
	ChannelInApp     Channel = "in_app"
)

// KnownChannels lists every supported channel.
var KnownChannels = []Channel{ChannelEmail, ChannelMassEmail, ChannelSMS, ChannelInApp}

// IsValid reports whether c is a supported channel.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelMassEmail, ChannelSMS, ChannelInApp:
		return true
	}
	return false
}

// RequiresUserID reports whether the channel can only reach registered
// accounts. SMS needs a profile to look up a phone number; in-app
// notifications are keyed by user id.
func (c Channel) RequiresUserID() bool {
	return c == ChannelSMS || c == ChannelInApp
}

// DeliveryStatus is the lifecycle state of one delivery attempt.
// A row moves from pending to exactly one terminal state and is never
// mutated afterwards.
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// Delivery is one attempted transmission of one communication to one
// recipient over one channel.
type Delivery struct {
	ID              uuid.UUID      `json:"id"`
	CommunicationID uuid.UUID      `json:"communication_id"`
	RecipientUserID uuid.NullUUID  `json:"recipient_user_id,omitempty"`
	RecipientEmail  string         `json:"recipient_email"`
	RecipientName   string         `json:"recipient_name"`
	Channel         Channel        `json:"channel"`
	Status          DeliveryStatus `json:"status"`
	SentAt          *time.Time     `json:"sent_at,omitempty"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// NewPendingDelivery creates the pending row for one (recipient, channel) pair.
func NewPendingDelivery(communicationID uuid.UUID, recipient Recipient, channel Channel, now time.Time) *Delivery {
	return &Delivery{
		ID:              uuid.New(),
		CommunicationID: communicationID,
		RecipientUserID: recipient.UserID,
		RecipientEmail:  recipient.Email,
		RecipientName:   recipient.Name,
		Channel:         channel,
		Status:          DeliveryStatusPending,
		CreatedAt:       now,
	}
}
