package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
)

func setupDeliveryTest(t *testing.T) (domain.DeliveryRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewPgDeliveryRepository(mockPool, logger)
	return repo, mockPool
}

func TestPgDeliveryRepository_Create(t *testing.T) {
	repo, mockPool := setupDeliveryTest(t)
	defer mockPool.Close()

	recipient := domain.Recipient{
		UserID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Email:  "member@example.com",
		Name:   "Member",
	}
	d := domain.NewPendingDelivery(uuid.New(), recipient, domain.ChannelEmail, time.Now().UTC())

	mockPool.ExpectExec(`INSERT INTO communication_deliveries`).
		WithArgs(d.ID, d.CommunicationID, d.RecipientUserID, d.RecipientEmail, d.RecipientName,
			d.Channel, d.Status, d.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryStatusPending, d.Status)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgDeliveryRepository_MarkSent(t *testing.T) {
	repo, mockPool := setupDeliveryTest(t)
	defer mockPool.Close()

	deliveryID := uuid.New()
	sentAt := time.Now().UTC()

	t.Run("Success", func(t *testing.T) {
		mockPool.ExpectExec(`UPDATE communication_deliveries`).
			WithArgs(deliveryID, domain.DeliveryStatusSent, sentAt, domain.DeliveryStatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkSent(context.Background(), deliveryID, sentAt)
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("AlreadyTerminal", func(t *testing.T) {
		// The pending-status guard means a terminal row matches nothing.
		mockPool.ExpectExec(`UPDATE communication_deliveries`).
			WithArgs(deliveryID, domain.DeliveryStatusSent, sentAt, domain.DeliveryStatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkSent(context.Background(), deliveryID, sentAt)
		assert.ErrorIs(t, err, domain.ErrDeliveryNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgDeliveryRepository_MarkFailed(t *testing.T) {
	repo, mockPool := setupDeliveryTest(t)
	defer mockPool.Close()

	deliveryID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockPool.ExpectExec(`UPDATE communication_deliveries`).
			WithArgs(deliveryID, domain.DeliveryStatusFailed, "smtp: connection refused", domain.DeliveryStatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkFailed(context.Background(), deliveryID, "smtp: connection refused")
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("AlreadyTerminal", func(t *testing.T) {
		mockPool.ExpectExec(`UPDATE communication_deliveries`).
			WithArgs(deliveryID, domain.DeliveryStatusFailed, "boom", domain.DeliveryStatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkFailed(context.Background(), deliveryID, "boom")
		assert.ErrorIs(t, err, domain.ErrDeliveryNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgDeliveryRepository_ListByCommunicationID(t *testing.T) {
	repo, mockPool := setupDeliveryTest(t)
	defer mockPool.Close()

	commID := uuid.New()
	sentAt := time.Now().UTC()
	errMsg := "sms to +1555: provider error"

	rows := mockPool.NewRows([]string{
		"id", "communication_id", "recipient_user_id", "recipient_email", "recipient_name",
		"channel", "status", "sent_at", "error_message", "created_at",
	}).
		AddRow(uuid.New(), commID, uuid.NullUUID{UUID: uuid.New(), Valid: true}, "a@x.com", "A",
			domain.ChannelEmail, domain.DeliveryStatusSent, &sentAt, (*string)(nil), sentAt.Add(-time.Second)).
		AddRow(uuid.New(), commID, uuid.NullUUID{}, "b@x.com", "B",
			domain.ChannelSMS, domain.DeliveryStatusFailed, (*time.Time)(nil), &errMsg, sentAt.Add(-time.Second))

	mockPool.ExpectQuery(`SELECT id, communication_id, recipient_user_id`).
		WithArgs(commID).
		WillReturnRows(rows)

	deliveries, err := repo.ListByCommunicationID(context.Background(), commID)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.Equal(t, domain.DeliveryStatusSent, deliveries[0].Status)
	assert.Equal(t, domain.DeliveryStatusFailed, deliveries[1].Status)
	require.NotNil(t, deliveries[1].ErrorMessage)
	assert.Equal(t, errMsg, *deliveries[1].ErrorMessage)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
