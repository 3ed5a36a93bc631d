package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CommunicationRepository owns persistence of Communication rows.
type CommunicationRepository interface {
	Create(ctx context.Context, comm *Communication) error
	GetByID(ctx context.Context, id uuid.UUID) (*Communication, error)
	// UpdateStatus moves a communication to a non-terminal status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status CommunicationStatus) error
	// FinalizeSent marks a communication sent and stores the aggregate
	// summary. Called exactly once per dispatch run.
	FinalizeSent(ctx context.Context, id uuid.UUID, sentAt time.Time, summary DeliverySummary) error
}

// DeliveryRepository owns persistence of Delivery rows. Terminal rows
// are never updated again.
type DeliveryRepository interface {
	Create(ctx context.Context, d *Delivery) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	ListByCommunicationID(ctx context.Context, communicationID uuid.UUID) ([]*Delivery, error)
}

// ProfileRepository is the profile store collaborator.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	ListSuperAdmins(ctx context.Context) ([]*Profile, error)
	ListByVoicePart(ctx context.Context, voicePart string) ([]*Profile, error)
	ListByGraduationYear(ctx context.Context, year int) ([]*Profile, error)
	ListByRole(ctx context.Context, role string) ([]*Profile, error)
	// ListRegistered returns every profile with a non-null user id.
	ListRegistered(ctx context.Context) ([]*Profile, error)
}

// BoardMemberRepository is the executive-board membership store.
type BoardMemberRepository interface {
	ListActive(ctx context.Context) ([]*BoardMember, error)
	ListActiveByPositions(ctx context.Context, positions []string) ([]*BoardMember, error)
}

// NotificationRepository is the in-app notification store.
type NotificationRepository interface {
	Insert(ctx context.Context, n *Notification) error
}
