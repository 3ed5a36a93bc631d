package domain

import (
	"fmt"
	"strings"
)

// RawGroupSelector is the wire form of a recipient group selector as
// submitted by callers and as persisted on a scheduled communication.
type RawGroupSelector struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"` // "role" | "voice_part" | "academic_year" | "special"
}

// GroupSelector is a closed set of recipient group selector variants.
// Matching on the concrete type replaces the stringly-typed tag/prefix
// dispatch of older callers.
type GroupSelector interface {
	Describe() string
	sealed()
}

// RoleSelector selects members by organizational role
// ("doc", "executive_board", "section_leaders", "student_conductor").
type RoleSelector struct{ Role string }

// VoicePartSelector selects active members by voice part key
// (e.g. "soprano_1").
type VoicePartSelector struct{ VoicePart string }

// AcademicYearSelector selects members of an academic class
// ("first_years", "sophomores", "juniors", "seniors").
type AcademicYearSelector struct{ Year string }

// DirectEmailSelector is a single synthetic recipient with only an
// email address.
type DirectEmailSelector struct{ Email string }

// DirectUserSelector selects exactly one profile by user id.
type DirectUserSelector struct{ UserID string }

// NamedGroupSelector selects one of the remaining named special groups
// ("alumnae", "all_users").
type NamedGroupSelector struct{ Name string }

func (s RoleSelector) sealed()         {}
func (s VoicePartSelector) sealed()    {}
func (s AcademicYearSelector) sealed() {}
func (s DirectEmailSelector) sealed()  {}
func (s DirectUserSelector) sealed()   {}
func (s NamedGroupSelector) sealed()   {}

func (s RoleSelector) Describe() string         { return "role:" + s.Role }
func (s VoicePartSelector) Describe() string    { return "voice_part:" + s.VoicePart }
func (s AcademicYearSelector) Describe() string { return "academic_year:" + s.Year }
func (s DirectEmailSelector) Describe() string  { return "direct_email:" + s.Email }
func (s DirectUserSelector) Describe() string   { return "direct_user:" + s.UserID }
func (s NamedGroupSelector) Describe() string   { return "special:" + s.Name }

const (
	directEmailPrefix = "direct_email:"
	directUserPrefix  = "direct_user:"
)

// ParseSelector maps one wire selector to its variant. Unknown types
// and unknown special ids return (nil, false): per contract they
// resolve to zero recipients rather than an error.
func ParseSelector(raw RawGroupSelector) (GroupSelector, bool) {
	switch raw.Type {
	case "role":
		return RoleSelector{Role: raw.ID}, true
	case "voice_part":
		return VoicePartSelector{VoicePart: raw.ID}, true
	case "academic_year":
		return AcademicYearSelector{Year: raw.ID}, true
	case "special":
		switch {
		case strings.HasPrefix(raw.ID, directEmailPrefix):
			return DirectEmailSelector{Email: strings.TrimPrefix(raw.ID, directEmailPrefix)}, true
		case strings.HasPrefix(raw.ID, directUserPrefix):
			return DirectUserSelector{UserID: strings.TrimPrefix(raw.ID, directUserPrefix)}, true
		case raw.ID == "alumnae", raw.ID == "all_users":
			return NamedGroupSelector{Name: raw.ID}, true
		}
		return nil, false
	}
	return nil, false
}

// ParseSelectors maps wire selectors to variants in order, dropping
// unknown entries. It returns the parsed selectors and a description of
// each dropped entry for logging.
func ParseSelectors(raws []RawGroupSelector) (selectors []GroupSelector, dropped []string) {
	for _, raw := range raws {
		sel, ok := ParseSelector(raw)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("%s/%s", raw.Type, raw.ID))
			continue
		}
		selectors = append(selectors, sel)
	}
	return selectors, dropped
}
