package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
	"github.com/google/uuid"
)

// voicePartLabels maps voice part selector ids to the exact value
// stored on profiles. Unmapped ids resolve to no recipients.
var voicePartLabels = map[string]string{
	"soprano_1": "Soprano 1",
	"soprano_2": "Soprano 2",
	"alto_1":    "Alto 1",
	"alto_2":    "Alto 2",
	"tenor":     "Tenor",
	"bass":      "Bass",
}

// academicYearOffsets maps an academic class to the number of years
// until graduation. seniors graduate next calendar year.
var academicYearOffsets = map[string]int{
	"first_years": 4,
	"sophomores":  3,
	"juniors":     2,
	"seniors":     1,
}

// sectionLeaderPositions are the four fixed board positions that make
// up the "section_leaders" role group.
var sectionLeaderPositions = []string{
	"Soprano 1 Section Leader",
	"Soprano 2 Section Leader",
	"Alto 1 Section Leader",
	"Alto 2 Section Leader",
}

const studentConductorPosition = "Student Conductor"

// Resolver expands recipient group selectors into a deduplicated list
// of concrete recipients.
type Resolver struct {
	profiles domain.ProfileRepository
	board    domain.BoardMemberRepository
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Resolver. now is injectable for tests; nil means
// time.Now.
func New(profiles domain.ProfileRepository, board domain.BoardMemberRepository, logger *slog.Logger, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		profiles: profiles,
		board:    board,
		logger:   logger.With("component", "resolver"),
		now:      now,
	}
}

// Resolve processes selectors in input order and returns recipients
// deduplicated by email, first occurrence winning. A store error while
// resolving one selector is logged and contributes zero recipients so
// one bad selector does not block the others. An empty result is valid.
func (r *Resolver) Resolve(ctx context.Context, selectors []domain.GroupSelector) []domain.Recipient {
	seen := make(map[string]struct{})
	var out []domain.Recipient

	for _, sel := range selectors {
		resolved, err := r.resolveOne(ctx, sel)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to resolve selector, treating as empty",
				"selector", sel.Describe(), "error", err)
			continue
		}
		for _, rec := range resolved {
			if rec.Email == "" {
				continue
			}
			if _, dup := seen[rec.Email]; dup {
				continue
			}
			seen[rec.Email] = struct{}{}
			out = append(out, rec)
		}
	}

	r.logger.InfoContext(ctx, "Resolved recipients", "selectors", len(selectors), "recipients", len(out))
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, sel domain.GroupSelector) ([]domain.Recipient, error) {
	switch s := sel.(type) {
	case domain.RoleSelector:
		return r.resolveRole(ctx, s.Role)

	case domain.VoicePartSelector:
		label, ok := voicePartLabels[s.VoicePart]
		if !ok {
			r.logger.WarnContext(ctx, "Unknown voice part selector", "voice_part", s.VoicePart)
			return nil, nil
		}
		profiles, err := r.profiles.ListByVoicePart(ctx, label)
		if err != nil {
			return nil, err
		}
		return recipientsFromProfiles(profiles), nil

	case domain.AcademicYearSelector:
		offset, ok := academicYearOffsets[s.Year]
		if !ok {
			r.logger.WarnContext(ctx, "Unknown academic year selector", "year", s.Year)
			return nil, nil
		}
		graduationYear := r.now().Year() + offset
		profiles, err := r.profiles.ListByGraduationYear(ctx, graduationYear)
		if err != nil {
			return nil, err
		}
		return recipientsFromProfiles(profiles), nil

	case domain.DirectEmailSelector:
		if s.Email == "" {
			return nil, nil
		}
		return []domain.Recipient{{Email: s.Email}}, nil

	case domain.DirectUserSelector:
		userID, err := uuid.Parse(s.UserID)
		if err != nil {
			r.logger.WarnContext(ctx, "Invalid user id in direct_user selector", "user_id", s.UserID)
			return nil, nil
		}
		profile, err := r.profiles.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrProfileNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []domain.Recipient{domain.RecipientFromProfile(profile)}, nil

	case domain.NamedGroupSelector:
		switch s.Name {
		case "alumnae":
			profiles, err := r.profiles.ListByRole(ctx, "alumna")
			if err != nil {
				return nil, err
			}
			return recipientsFromProfiles(profiles), nil
		case "all_users":
			profiles, err := r.profiles.ListRegistered(ctx)
			if err != nil {
				return nil, err
			}
			return recipientsFromProfiles(profiles), nil
		}
		r.logger.WarnContext(ctx, "Unknown named group selector", "name", s.Name)
		return nil, nil
	}

	// Unreachable while GroupSelector stays sealed.
	return nil, nil
}

func (r *Resolver) resolveRole(ctx context.Context, role string) ([]domain.Recipient, error) {
	switch role {
	case "doc":
		profiles, err := r.profiles.ListSuperAdmins(ctx)
		if err != nil {
			return nil, err
		}
		return recipientsFromProfiles(profiles), nil

	case "executive_board":
		members, err := r.board.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		return recipientsFromBoardMembers(members), nil

	case "section_leaders":
		members, err := r.board.ListActiveByPositions(ctx, sectionLeaderPositions)
		if err != nil {
			return nil, err
		}
		return recipientsFromBoardMembers(members), nil

	case "student_conductor":
		members, err := r.board.ListActiveByPositions(ctx, []string{studentConductorPosition})
		if err != nil {
			return nil, err
		}
		return recipientsFromBoardMembers(members), nil
	}

	r.logger.WarnContext(ctx, "Unknown role selector", "role", role)
	return nil, nil
}

func recipientsFromProfiles(profiles []*domain.Profile) []domain.Recipient {
	recipients := make([]domain.Recipient, 0, len(profiles))
	for _, p := range profiles {
		recipients = append(recipients, domain.RecipientFromProfile(p))
	}
	return recipients
}

func recipientsFromBoardMembers(members []*domain.BoardMember) []domain.Recipient {
	recipients := make([]domain.Recipient, 0, len(members))
	for _, m := range members {
		rec := domain.RecipientFromProfile(&m.Profile)
		rec.Role = m.Position
		recipients = append(recipients, rec)
	}
	return recipients
}
