package postgres

import (
	"context"
	"log/slog"

	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
)

type PgBoardMemberRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgBoardMemberRepository creates a new instance for PostgreSQL.
// Rows join board membership with the member's profile for contact data.
func NewPgBoardMemberRepository(db PgxIface, logger *slog.Logger) domain.BoardMemberRepository {
	return &PgBoardMemberRepository{db: db, logger: logger.With("component", "board_member_repository_pg")}
}

const boardMemberQuery = `
	SELECT b.position, b.active,
	       p.user_id, p.email, p.full_name, p.first_name, p.last_name, p.phone_number,
	       p.voice_part, p.role, p.graduation_year, p.is_super_admin, p.status
	FROM executive_board_members b
	JOIN profiles p ON p.user_id = b.user_id
	WHERE b.active = TRUE`

func (r *PgBoardMemberRepository) ListActive(ctx context.Context) ([]*domain.BoardMember, error) {
	return r.list(ctx, boardMemberQuery)
}

func (r *PgBoardMemberRepository) ListActiveByPositions(ctx context.Context, positions []string) ([]*domain.BoardMember, error) {
	query := boardMemberQuery + ` AND b.position = ANY($1)`
	return r.list(ctx, query, positions)
}

func (r *PgBoardMemberRepository) list(ctx context.Context, query string, args ...any) ([]*domain.BoardMember, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing board members", "error", err)
		return nil, err
	}
	defer rows.Close()

	var members []*domain.BoardMember
	for rows.Next() {
		m := &domain.BoardMember{}
		p := &m.Profile
		if err := rows.Scan(
			&m.Position, &m.Active,
			&p.UserID, &p.Email, &p.FullName, &p.FirstName, &p.LastName, &p.PhoneNumber,
			&p.VoicePart, &p.Role, &p.GraduationYear, &p.IsSuperAdmin, &p.Status,
		); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
