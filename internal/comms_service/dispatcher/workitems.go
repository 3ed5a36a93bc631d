package dispatcher

import "github.com/gleeworld/comms-gateway/internal/comms_service/domain"

// WorkItem is one (recipient, channel) pair to attempt. Skip marks
// pairs whose contact-data precondition already failed statically; no
// delivery row is ever created for a skipped item.
type WorkItem struct {
	Recipient  domain.Recipient
	Channel    domain.Channel
	Skip       bool
	SkipReason string
}

// BuildWorkItems expands the recipient x channel Cartesian product,
// recipient-major. Channels requiring a registered account are marked
// skipped for recipients without a user id. Pure function; the
// executor decides how concurrently items run.
func BuildWorkItems(recipients []domain.Recipient, channels []domain.Channel) []WorkItem {
	items := make([]WorkItem, 0, len(recipients)*len(channels))
	for _, rec := range recipients {
		for _, ch := range channels {
			item := WorkItem{Recipient: rec, Channel: ch}
			if ch.RequiresUserID() && !rec.UserID.Valid {
				item.Skip = true
				item.SkipReason = "recipient has no user id"
			}
			items = append(items, item)
		}
	}
	return items
}
