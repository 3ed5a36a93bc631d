package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PgCommunicationRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgCommunicationRepository creates a new instance for PostgreSQL.
func NewPgCommunicationRepository(db PgxIface, logger *slog.Logger) domain.CommunicationRepository {
	return &PgCommunicationRepository{db: db, logger: logger.With("component", "communication_repository_pg")}
}

func (r *PgCommunicationRepository) Create(ctx context.Context, comm *domain.Communication) error {
	channelsJSON, err := json.Marshal(comm.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	query := `
		INSERT INTO communications (
			id, title, content, sender_id, sender_name, type, priority, status,
			recipient_groups, channels, scheduled_for, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.db.Exec(ctx, query,
		comm.ID, comm.Title, comm.Content, comm.SenderID, comm.SenderName,
		comm.Type, comm.Priority, comm.Status,
		comm.RecipientGroups, channelsJSON, comm.ScheduledFor, comm.ExpiresAt,
		comm.CreatedAt, comm.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating communication", "error", err, "communication_id", comm.ID)
		return err
	}
	return nil
}

func (r *PgCommunicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Communication, error) {
	query := `
		SELECT id, title, content, sender_id, sender_name, type, priority, status,
		       recipient_groups, channels, scheduled_for, expires_at, sent_at,
		       delivery_summary, created_at, updated_at
		FROM communications WHERE id = $1
	`
	comm := &domain.Communication{}
	var channelsJSON, summaryJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&comm.ID, &comm.Title, &comm.Content, &comm.SenderID, &comm.SenderName,
		&comm.Type, &comm.Priority, &comm.Status,
		&comm.RecipientGroups, &channelsJSON, &comm.ScheduledFor, &comm.ExpiresAt, &comm.SentAt,
		&summaryJSON, &comm.CreatedAt, &comm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCommunicationNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting communication by ID", "error", err, "communication_id", id)
		return nil, err
	}

	if len(channelsJSON) > 0 {
		if err := json.Unmarshal(channelsJSON, &comm.Channels); err != nil {
			return nil, fmt.Errorf("unmarshal channels: %w", err)
		}
	}
	if len(summaryJSON) > 0 {
		comm.DeliverySummary = &domain.DeliverySummary{}
		if err := json.Unmarshal(summaryJSON, comm.DeliverySummary); err != nil {
			return nil, fmt.Errorf("unmarshal delivery summary: %w", err)
		}
	}
	return comm, nil
}

func (r *PgCommunicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CommunicationStatus) error {
	query := `UPDATE communications SET status = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating communication status", "error", err, "communication_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommunicationNotFound
	}
	return nil
}

func (r *PgCommunicationRepository) FinalizeSent(ctx context.Context, id uuid.UUID, sentAt time.Time, summary domain.DeliverySummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal delivery summary: %w", err)
	}

	query := `
		UPDATE communications
		SET status = $2, sent_at = $3, delivery_summary = $4, updated_at = $5
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, domain.CommunicationStatusSent, sentAt, summaryJSON, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error finalizing communication", "error", err, "communication_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommunicationNotFound
	}
	return nil
}
