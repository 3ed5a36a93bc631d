package postgres

import (
	"context"
	"log/slog"

	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
)

type PgNotificationRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgNotificationRepository creates a new instance for PostgreSQL.
func NewPgNotificationRepository(db PgxIface, logger *slog.Logger) domain.NotificationRepository {
	return &PgNotificationRepository{db: db, logger: logger.With("component", "notification_repository_pg")}
}

func (r *PgNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, title, message, type, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Type, n.Read, n.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting notification", "error", err, "user_id", n.UserID)
		return err
	}
	return nil
}
