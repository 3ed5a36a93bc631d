package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `user_id, email, full_name, first_name, last_name, phone_number,
	       voice_part, role, graduation_year, is_super_admin, status`

type PgProfileRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgProfileRepository creates a new instance for PostgreSQL.
func NewPgProfileRepository(db PgxIface, logger *slog.Logger) domain.ProfileRepository {
	return &PgProfileRepository{db: db, logger: logger.With("component", "profile_repository_pg")}
}

func (r *PgProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	p := &domain.Profile{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Email, &p.FullName, &p.FirstName, &p.LastName, &p.PhoneNumber,
		&p.VoicePart, &p.Role, &p.GraduationYear, &p.IsSuperAdmin, &p.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting profile by user ID", "error", err, "user_id", userID)
		return nil, err
	}
	return p, nil
}

func (r *PgProfileRepository) ListSuperAdmins(ctx context.Context) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE is_super_admin = TRUE`
	return r.list(ctx, query)
}

func (r *PgProfileRepository) ListByVoicePart(ctx context.Context, voicePart string) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE voice_part = $1`
	return r.list(ctx, query, voicePart)
}

func (r *PgProfileRepository) ListByGraduationYear(ctx context.Context, year int) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE graduation_year = $1`
	return r.list(ctx, query, year)
}

func (r *PgProfileRepository) ListByRole(ctx context.Context, role string) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE role = $1`
	return r.list(ctx, query, role)
}

func (r *PgProfileRepository) ListRegistered(ctx context.Context) ([]*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id IS NOT NULL`
	return r.list(ctx, query)
}

func (r *PgProfileRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Profile, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing profiles", "error", err)
		return nil, err
	}
	defer rows.Close()

	var profiles []*domain.Profile
	for rows.Next() {
		p := &domain.Profile{}
		if err := rows.Scan(
			&p.UserID, &p.Email, &p.FullName, &p.FirstName, &p.LastName, &p.PhoneNumber,
			&p.VoicePart, &p.Role, &p.GraduationYear, &p.IsSuperAdmin, &p.Status,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
