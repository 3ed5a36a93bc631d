package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DueCommunicationRepository acquires scheduled communications whose
// time has come and manages the handoff status.
type DueCommunicationRepository interface {
	// AcquireDue atomically selects up to limit communications with
	// status "scheduled" and scheduled_for <= dueTime and flips them to
	// "sending", so concurrent pollers never double-acquire a row.
	AcquireDue(ctx context.Context, dueTime time.Time, limit int) ([]*DueCommunication, error)
	// Release returns an acquired communication to "scheduled" after a
	// failed handoff, so a later poll cycle retries it.
	Release(ctx context.Context, id uuid.UUID) error
}
