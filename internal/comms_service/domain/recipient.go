package domain

import "github.com/google/uuid"

// Recipient is a resolved contact for one send. It is created
// transiently by the resolver and never persisted on its own.
//
// Email is the dedup key within a single resolution pass, compared
// case-sensitively as stored. VoicePart and Role are provenance only
// and never drive delivery logic.
type Recipient struct {
	UserID    uuid.NullUUID
	Email     string
	Name      string
	VoicePart string
	Role      string
}

// RecipientFromProfile builds a recipient from a profile row.
func RecipientFromProfile(p *Profile) Recipient {
	r := Recipient{
		UserID: p.UserID,
		Email:  p.Email,
		Name:   p.DisplayName(),
		Role:   p.Role,
	}
	if p.VoicePart != nil {
		r.VoicePart = *p.VoicePart
	}
	return r
}
