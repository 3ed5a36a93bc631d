package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-product notification visible on the member
// dashboard, produced by the in_app channel.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
