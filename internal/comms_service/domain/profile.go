package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Profile is the read model of a member profile as served by the
// profile store. Only fields the pipeline needs are represented.
type Profile struct {
	UserID         uuid.NullUUID
	Email          string
	FullName       string
	FirstName      string
	LastName       string
	PhoneNumber    *string
	VoicePart      *string
	Role           string
	GraduationYear *int
	IsSuperAdmin   bool
	Status         string
}

// DisplayName returns the best available human-readable name.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name != "" {
		return name
	}
	return p.Email
}

// BoardMember is an active executive-board membership record joined
// with the member's profile for contact data.
type BoardMember struct {
	Profile  Profile
	Position string
	Active   bool
}
