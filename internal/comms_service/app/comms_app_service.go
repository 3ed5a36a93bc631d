package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gleeworld/comms-gateway/internal/comms_service/dispatcher"
	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
	"github.com/gleeworld/comms-gateway/internal/comms_service/resolver"
	"github.com/gleeworld/comms-gateway/internal/platform/messagebroker"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSJobPayload is the message published by the scheduler for a due
// communication.
type NATSJobPayload struct {
	CommunicationID string `json:"communication_id"`
}

// SendRequest carries one submitted communication.
type SendRequest struct {
	Title           string
	Content         string
	SenderID        uuid.UUID
	SenderName      string
	Type            string
	Priority        string
	RecipientGroups []domain.RawGroupSelector
	Channels        []domain.Channel
	ScheduledFor    *time.Time
}

// SendResult is the outcome acknowledged to the caller.
type SendResult struct {
	CommunicationID uuid.UUID
	Scheduled       bool
	Message         string
	Summary         *domain.DeliverySummary
}

// CommsAppService owns the communication lifecycle: the scheduling
// gate, the resolve-dispatch-finalize pipeline, and the NATS consumer
// that re-runs the pipeline for scheduled communications come due.
type CommsAppService struct {
	comms      domain.CommunicationRepository
	resolver   *resolver.Resolver
	dispatcher *dispatcher.Dispatcher
	natsClient *messagebroker.NATSClient
	logger     *slog.Logger
	now        func() time.Time
	natsSub    *nats.Subscription
}

// NewCommsAppService creates a CommsAppService. natsClient may be nil
// when the consumer is not needed (tests). now is injectable; nil
// means time.Now.
func NewCommsAppService(
	comms domain.CommunicationRepository,
	res *resolver.Resolver,
	disp *dispatcher.Dispatcher,
	natsClient *messagebroker.NATSClient,
	logger *slog.Logger,
	now func() time.Time,
) *CommsAppService {
	if now == nil {
		now = time.Now
	}
	return &CommsAppService{
		comms:      comms,
		resolver:   res,
		dispatcher: disp,
		natsClient: natsClient,
		logger:     logger.With("service", "comms_app"),
		now:        now,
	}
}

// SendCommunication persists the communication and either defers it
// (future ScheduledFor) or runs the pipeline synchronously. A schedule
// time equal to now or in the past is an immediate send, not an error.
func (s *CommsAppService) SendCommunication(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.Title == "" || req.Content == "" {
		return nil, errors.New("title and content are required")
	}
	for _, ch := range req.Channels {
		if !ch.IsValid() {
			return nil, fmt.Errorf("unsupported channel: %s", ch)
		}
	}

	groupsJSON, err := json.Marshal(req.RecipientGroups)
	if err != nil {
		return nil, fmt.Errorf("marshal recipient groups: %w", err)
	}

	now := s.now().UTC()
	comm := domain.NewCommunication(
		req.Title, req.Content, req.SenderID, req.SenderName,
		req.Type, req.Priority, groupsJSON, req.Channels, req.ScheduledFor, now,
	)

	if err := s.comms.Create(ctx, comm); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create communication record", "error", err)
		communicationsSentCounter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create communication: %w", err)
	}

	// Scheduling gate: strictly-future sends stop here. The scheduler
	// service re-invokes the pipeline through NATS at/after the time.
	if comm.Status == domain.CommunicationStatusScheduled {
		s.logger.InfoContext(ctx, "Communication scheduled",
			"communication_id", comm.ID, "scheduled_for", comm.ScheduledFor)
		communicationsSentCounter.WithLabelValues("scheduled").Inc()
		return &SendResult{
			CommunicationID: comm.ID,
			Scheduled:       true,
			Message:         fmt.Sprintf("Communication scheduled for %s", comm.ScheduledFor.Format(time.RFC3339)),
		}, nil
	}

	summary, err := s.runPipeline(ctx, comm)
	if err != nil {
		communicationsSentCounter.WithLabelValues("error").Inc()
		return nil, err
	}
	communicationsSentCounter.WithLabelValues("sent").Inc()

	return &SendResult{
		CommunicationID: comm.ID,
		Message:         fmt.Sprintf("Communication sent to %d recipients", summary.SentCount()),
		Summary:         summary,
	}, nil
}

// GetCommunication returns a communication with its summary.
func (s *CommsAppService) GetCommunication(ctx context.Context, id uuid.UUID) (*domain.Communication, error) {
	return s.comms.GetByID(ctx, id)
}

// runPipeline resolves recipients, dispatches the fan-out and
// finalizes the record. The communication always reaches "sent" when
// dispatch ran to completion, even if every individual delivery
// failed; partial failure surfaces in the summary, not the status.
func (s *CommsAppService) runPipeline(ctx context.Context, comm *domain.Communication) (*domain.DeliverySummary, error) {
	var raws []domain.RawGroupSelector
	if len(comm.RecipientGroups) > 0 {
		if err := json.Unmarshal(comm.RecipientGroups, &raws); err != nil {
			return nil, fmt.Errorf("unmarshal recipient groups: %w", err)
		}
	}

	selectors, droppedSelectors := domain.ParseSelectors(raws)
	if len(droppedSelectors) > 0 {
		s.logger.WarnContext(ctx, "Ignoring unknown recipient group selectors",
			"communication_id", comm.ID, "selectors", droppedSelectors)
	}

	recipients := s.resolver.Resolve(ctx, selectors)

	summary := s.dispatcher.Dispatch(ctx, comm, recipients, comm.Channels)

	sentAt := s.now().UTC()
	if err := s.comms.FinalizeSent(ctx, comm.ID, sentAt, summary); err != nil {
		s.logger.ErrorContext(ctx, "Failed to finalize communication", "communication_id", comm.ID, "error", err)
		return nil, fmt.Errorf("finalize communication: %w", err)
	}

	s.logger.InfoContext(ctx, "Communication sent",
		"communication_id", comm.ID,
		"delivered", summary.SentCount(),
		"skipped", summary.Skipped,
		"errors", len(summary.Errors))
	return &summary, nil
}

// StartConsumingJobs subscribes to the scheduler's job subject and runs
// the pipeline for each due communication.
func (s *CommsAppService) StartConsumingJobs(ctx context.Context, subject, queueGroup string) error {
	if s.natsClient == nil {
		return errors.New("NATS client not initialized in CommsAppService")
	}
	s.logger.Info("Starting NATS job consumer", "subject", subject, "queue_group", queueGroup)

	msgHandler := func(msg *nats.Msg) {
		natsJobsReceivedCounter.WithLabelValues(msg.Subject).Inc()
		var job NATSJobPayload
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			s.logger.Error("Failed to unmarshal NATS job payload", "error", err, "data", string(msg.Data))
			return
		}

		jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := s.processScheduledJob(jobCtx, job); err != nil {
			s.logger.Error("Failed to process scheduled communication job",
				"error", err, "communication_id", job.CommunicationID)
		}
	}

	var err error
	s.natsSub, err = s.natsClient.Subscribe(ctx, subject, queueGroup, msgHandler)
	if err != nil {
		return fmt.Errorf("failed to subscribe to NATS subject %q: %w", subject, err)
	}
	return nil
}

func (s *CommsAppService) processScheduledJob(ctx context.Context, job NATSJobPayload) error {
	commID, err := uuid.Parse(job.CommunicationID)
	if err != nil {
		return fmt.Errorf("invalid communication id %q: %w", job.CommunicationID, err)
	}

	s.logger.InfoContext(ctx, "Processing scheduled communication", "communication_id", commID)

	comm, err := s.comms.GetByID(ctx, commID)
	if err != nil {
		return fmt.Errorf("load communication: %w", err)
	}

	// The scheduler flips rows to "sending" when it acquires them; a
	// row still "scheduled" is a direct re-drive and also acceptable.
	// Anything else was already handled.
	if comm.Status != domain.CommunicationStatusSending && comm.Status != domain.CommunicationStatusScheduled {
		s.logger.WarnContext(ctx, "Scheduled job for communication in unexpected status, ignoring",
			"communication_id", commID, "status", comm.Status)
		return nil
	}

	_, err = s.runPipeline(ctx, comm)
	return err
}

// StopConsumingJobs unsubscribes from NATS.
func (s *CommsAppService) StopConsumingJobs() {
	if s.natsSub != nil && s.natsSub.IsValid() {
		s.logger.Info("Unsubscribing from NATS job subject", "subject", s.natsSub.Subject)
		if err := s.natsSub.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe from NATS", "error", err, "subject", s.natsSub.Subject)
		}
	}
}
