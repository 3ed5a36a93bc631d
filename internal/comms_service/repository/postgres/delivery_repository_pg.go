package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
	"github.com/google/uuid"
)

type PgDeliveryRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgDeliveryRepository creates a new instance for PostgreSQL.
func NewPgDeliveryRepository(db PgxIface, logger *slog.Logger) domain.DeliveryRepository {
	return &PgDeliveryRepository{db: db, logger: logger.With("component", "delivery_repository_pg")}
}

func (r *PgDeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	query := `
		INSERT INTO communication_deliveries (
			id, communication_id, recipient_user_id, recipient_email, recipient_name,
			channel, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		d.ID, d.CommunicationID, d.RecipientUserID, d.RecipientEmail, d.RecipientName,
		d.Channel, d.Status, d.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating delivery", "error", err, "delivery_id", d.ID)
		return err
	}
	return nil
}

// MarkSent finalizes a pending delivery as sent. The status guard keeps
// terminal rows immutable.
func (r *PgDeliveryRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE communication_deliveries
		SET status = $2, sent_at = $3
		WHERE id = $1 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, id, domain.DeliveryStatusSent, sentAt, domain.DeliveryStatusPending)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking delivery sent", "error", err, "delivery_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeliveryNotFound
	}
	return nil
}

// MarkFailed finalizes a pending delivery as failed with its error.
func (r *PgDeliveryRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE communication_deliveries
		SET status = $2, error_message = $3
		WHERE id = $1 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, id, domain.DeliveryStatusFailed, errorMessage, domain.DeliveryStatusPending)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking delivery failed", "error", err, "delivery_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeliveryNotFound
	}
	return nil
}

func (r *PgDeliveryRepository) ListByCommunicationID(ctx context.Context, communicationID uuid.UUID) ([]*domain.Delivery, error) {
	query := `
		SELECT id, communication_id, recipient_user_id, recipient_email, recipient_name,
		       channel, status, sent_at, error_message, created_at
		FROM communication_deliveries
		WHERE communication_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, communicationID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing deliveries", "error", err, "communication_id", communicationID)
		return nil, err
	}
	defer rows.Close()

	var deliveries []*domain.Delivery
	for rows.Next() {
		d := &domain.Delivery{}
		if err := rows.Scan(
			&d.ID, &d.CommunicationID, &d.RecipientUserID, &d.RecipientEmail, &d.RecipientName,
			&d.Channel, &d.Status, &d.SentAt, &d.ErrorMessage, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
