package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gleeworld/comms-gateway/internal/scheduler_service/domain"
)

// MockDueCommunicationRepository is a mock implementation of domain.DueCommunicationRepository
type MockDueCommunicationRepository struct {
	mock.Mock
}

func (m *MockDueCommunicationRepository) AcquireDue(ctx context.Context, dueTime time.Time, limit int) ([]*domain.DueCommunication, error) {
	args := m.Called(ctx, dueTime, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DueCommunication), args.Error(1)
}

func (m *MockDueCommunicationRepository) Release(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockJobPublisher is a mock implementation of JobPublisher
type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func newTestPoller(repo domain.DueCommunicationRepository, publisher JobPublisher) *Poller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPoller(repo, publisher, logger, PollerConfig{
		PollingInterval: time.Second,
		BatchSize:       20,
		JobSubject:      "comms.jobs.send",
	})
}

func dueCommunication(title string) *domain.DueCommunication {
	at := time.Now().UTC().Add(-time.Minute)
	return &domain.DueCommunication{ID: uuid.New(), Title: title, ScheduledFor: at}
}

func TestPollAndPublish_PublishesOneJobPerDueCommunication(t *testing.T) {
	repo := new(MockDueCommunicationRepository)
	publisher := new(MockJobPublisher)

	first := dueCommunication("Concert reminder")
	second := dueCommunication("Dues notice")
	repo.On("AcquireDue", mock.Anything, mock.AnythingOfType("time.Time"), 20).
		Return([]*domain.DueCommunication{first, second}, nil)

	publisher.On("Publish", mock.Anything, "comms.jobs.send", mock.MatchedBy(func(data []byte) bool {
		var payload map[string]string
		if err := json.Unmarshal(data, &payload); err != nil {
			return false
		}
		return payload["communication_id"] == first.ID.String()
	})).Return(nil).Once()
	publisher.On("Publish", mock.Anything, "comms.jobs.send", mock.MatchedBy(func(data []byte) bool {
		var payload map[string]string
		if err := json.Unmarshal(data, &payload); err != nil {
			return false
		}
		return payload["communication_id"] == second.ID.String()
	})).Return(nil).Once()

	p := newTestPoller(repo, publisher)
	published, err := p.PollAndPublish(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, published)
	publisher.AssertExpectations(t)
	repo.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestPollAndPublish_NothingDueIsNotAnError(t *testing.T) {
	repo := new(MockDueCommunicationRepository)
	publisher := new(MockJobPublisher)

	repo.On("AcquireDue", mock.Anything, mock.AnythingOfType("time.Time"), 20).
		Return(nil, domain.ErrNoDueCommunications)

	p := newTestPoller(repo, publisher)
	published, err := p.PollAndPublish(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, published)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPollAndPublish_AcquireErrorPropagates(t *testing.T) {
	repo := new(MockDueCommunicationRepository)
	publisher := new(MockJobPublisher)

	dbErr := errors.New("connection reset")
	repo.On("AcquireDue", mock.Anything, mock.AnythingOfType("time.Time"), 20).Return(nil, dbErr)

	p := newTestPoller(repo, publisher)
	_, err := p.PollAndPublish(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestPollAndPublish_PublishFailureReleasesRow(t *testing.T) {
	repo := new(MockDueCommunicationRepository)
	publisher := new(MockJobPublisher)

	stuck := dueCommunication("Stuck job")
	ok := dueCommunication("Healthy job")
	repo.On("AcquireDue", mock.Anything, mock.AnythingOfType("time.Time"), 20).
		Return([]*domain.DueCommunication{stuck, ok}, nil)

	publisher.On("Publish", mock.Anything, "comms.jobs.send", mock.Anything).
		Return(errors.New("nats: connection closed")).Once()
	publisher.On("Publish", mock.Anything, "comms.jobs.send", mock.Anything).
		Return(nil).Once()
	repo.On("Release", mock.Anything, stuck.ID).Return(nil).Once()

	p := newTestPoller(repo, publisher)
	published, err := p.PollAndPublish(context.Background())

	// The failed handoff is released for a later cycle; the rest of the
	// batch still goes out.
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := new(MockDueCommunicationRepository)
	publisher := new(MockJobPublisher)
	repo.On("AcquireDue", mock.Anything, mock.AnythingOfType("time.Time"), 20).
		Return(nil, domain.ErrNoDueCommunications).Maybe()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPoller(repo, publisher, logger, PollerConfig{
		PollingInterval: 10 * time.Millisecond,
		BatchSize:       20,
		JobSubject:      "comms.jobs.send",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
