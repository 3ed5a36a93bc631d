package http

import (
	"time"

	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
)

// RecipientGroupDTO is the wire form of one recipient group selector.
type RecipientGroupDTO struct {
	ID    string `json:"id" validate:"required"`
	Label string `json:"label"`
	Type  string `json:"type" validate:"required,oneof=role voice_part academic_year special"`
}

// SendCommunicationRequest DTO for POST /communications/send
type SendCommunicationRequest struct {
	Title           string              `json:"title" validate:"required,min=1"`
	Content         string              `json:"content" validate:"required,min=1"`
	SenderID        string              `json:"sender_id" validate:"required,uuid"`
	SenderName      string              `json:"sender_name"`
	Type            string              `json:"type"`
	Priority        string              `json:"priority"`
	RecipientGroups []RecipientGroupDTO `json:"recipient_groups" validate:"required,dive"`
	Channels        []string            `json:"channels" validate:"required,min=1,dive,oneof=email mass_email sms in_app"`
	ScheduledFor    *time.Time          `json:"scheduled_for,omitempty"`
}

// DeliverySummaryDTO mirrors the aggregate summary on the wire.
type DeliverySummaryDTO struct {
	Email     int      `json:"email"`
	MassEmail int      `json:"mass_email"`
	SMS       int      `json:"sms"`
	InApp     int      `json:"in_app"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// SendCommunicationResponse DTO
type SendCommunicationResponse struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	CommunicationID string              `json:"communication_id"`
	DeliverySummary *DeliverySummaryDTO `json:"delivery_summary,omitempty"`
}

// CommunicationStatusResponse DTO for GET /communications/{communicationID}
type CommunicationStatusResponse struct {
	ID              string                     `json:"id"`
	Title           string                     `json:"title"`
	SenderID        string                     `json:"sender_id"`
	SenderName      string                     `json:"sender_name"`
	Type            string                     `json:"type"`
	Priority        string                     `json:"priority"`
	Status          domain.CommunicationStatus `json:"status"`
	Channels        []domain.Channel           `json:"channels"`
	ScheduledFor    *time.Time                 `json:"scheduled_for,omitempty"`
	SentAt          *time.Time                 `json:"sent_at,omitempty"`
	DeliverySummary *DeliverySummaryDTO        `json:"delivery_summary,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// ErrorResponse is the uniform failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func summaryDTO(s *domain.DeliverySummary) *DeliverySummaryDTO {
	if s == nil {
		return nil
	}
	errs := s.Errors
	if errs == nil {
		errs = []string{}
	}
	return &DeliverySummaryDTO{
		Email:     s.Email,
		MassEmail: s.MassEmail,
		SMS:       s.SMS,
		InApp:     s.InApp,
		Skipped:   s.Skipped,
		Errors:    errs,
	}
}
