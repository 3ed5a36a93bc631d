package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNoDueCommunications = errors.New("no due communications")

// DueCommunication is the scheduler's view of a scheduled communication
// that has come due. The scheduler only needs enough to hand the work
// to the comms service over NATS.
type DueCommunication struct {
	ID           uuid.UUID
	Title        string
	ScheduledFor time.Time
}
