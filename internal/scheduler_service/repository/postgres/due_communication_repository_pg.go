package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/gleeworld/comms-gateway/internal/scheduler_service/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxIface is the subset of pgxpool.Pool this repository needs.
// pgxmock satisfies it in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgDueCommunicationRepository struct {
	db     PgxIface
	logger *slog.Logger
}

func NewPgDueCommunicationRepository(db PgxIface, logger *slog.Logger) *PgDueCommunicationRepository {
	return &PgDueCommunicationRepository{db: db, logger: logger.With("component", "due_communication_repository_pg")}
}

func (r *PgDueCommunicationRepository) AcquireDue(ctx context.Context, dueTime time.Time, limit int) ([]*domain.DueCommunication, error) {
	query := `
		WITH due_ids AS (
			SELECT id
			FROM communications
			WHERE status = 'scheduled' AND scheduled_for <= $1
			ORDER BY scheduled_for ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE communications c
		SET status = 'sending', updated_at = $3
		FROM due_ids d
		WHERE c.id = d.id
		RETURNING c.id, c.title, c.scheduled_for;
	`
	now := time.Now().UTC()
	rows, err := r.db.Query(ctx, query, dueTime, limit, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error acquiring due communications", "error", err)
		return nil, err
	}
	defer rows.Close()

	var due []*domain.DueCommunication
	for rows.Next() {
		dc := &domain.DueCommunication{}
		if err := rows.Scan(&dc.ID, &dc.Title, &dc.ScheduledFor); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning acquired communication row", "error", err)
			return nil, err
		}
		due = append(due, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, domain.ErrNoDueCommunications
	}
	return due, nil
}

func (r *PgDueCommunicationRepository) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE communications
		SET status = 'scheduled', updated_at = $2
		WHERE id = $1 AND status = 'sending'
	`
	_, err := r.db.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error releasing communication", "error", err, "communication_id", id)
	}
	return err
}
