package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gleeworld/comms-gateway/internal/platform/messagebroker"
	"github.com/gleeworld/comms-gateway/internal/scheduler_service/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	communicationsAcquiredCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "communications_acquired_total",
			Help:      "Total due communications processed by the scheduler.",
		},
		[]string{"status"}, // "published", "error_publish"
	)
	pollCycleDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Name:      "poll_cycle_duration_seconds",
			Help:      "Duration of scheduler poll cycles.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// PollerConfig holds configuration specific to the Poller.
type PollerConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	JobSubject      string
}

// JobPublisher is the message-broker surface the poller needs.
// *messagebroker.NATSClient satisfies it.
type JobPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

var _ JobPublisher = (*messagebroker.NATSClient)(nil)

// Poller acquires due scheduled communications and hands them to the
// comms service over NATS.
type Poller struct {
	repo      domain.DueCommunicationRepository
	publisher JobPublisher
	logger    *slog.Logger
	config    PollerConfig
}

// NewPoller creates a new Poller instance.
func NewPoller(repo domain.DueCommunicationRepository, publisher JobPublisher, logger *slog.Logger, cfg PollerConfig) *Poller {
	return &Poller{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "poller"),
		config:    cfg,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.config.PollingInterval)
	defer ticker.Stop()

	p.logger.Info("Scheduler poller started",
		"interval", p.config.PollingInterval, "batch_size", p.config.BatchSize, "subject", p.config.JobSubject)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Scheduler poller stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PollAndPublish(ctx); err != nil {
				p.logger.ErrorContext(ctx, "Poll cycle failed", "error", err)
				// Keep polling; transient DB/NATS outages should not kill the poller.
			}
		}
	}
}

// PollAndPublish acquires due communications and publishes one job per
// row. It returns the number published and any critical error.
func (p *Poller) PollAndPublish(ctx context.Context) (published int, err error) {
	timer := prometheus.NewTimer(pollCycleDurationHist)
	defer timer.ObserveDuration()

	due, err := p.repo.AcquireDue(ctx, time.Now().UTC(), p.config.BatchSize)
	if err != nil {
		if errors.Is(err, domain.ErrNoDueCommunications) {
			p.logger.DebugContext(ctx, "No due communications in this poll cycle")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to acquire due communications: %w", err)
	}

	p.logger.InfoContext(ctx, "Acquired due communications", "count", len(due))

	for _, dc := range due {
		payload, err := json.Marshal(map[string]string{"communication_id": dc.ID.String()})
		if err != nil {
			// Marshal of a uuid map cannot realistically fail; release so
			// the row is not stranded in "sending".
			p.logger.ErrorContext(ctx, "Failed to marshal job payload", "error", err, "communication_id", dc.ID)
			p.release(ctx, dc)
			communicationsAcquiredCounter.WithLabelValues("error_publish").Inc()
			continue
		}

		if err := p.publisher.Publish(ctx, p.config.JobSubject, payload); err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish job to NATS",
				"error", err, "communication_id", dc.ID, "subject", p.config.JobSubject)
			p.release(ctx, dc)
			communicationsAcquiredCounter.WithLabelValues("error_publish").Inc()
			continue
		}

		p.logger.InfoContext(ctx, "Published scheduled communication job",
			"communication_id", dc.ID, "title", dc.Title, "scheduled_for", dc.ScheduledFor)
		communicationsAcquiredCounter.WithLabelValues("published").Inc()
		published++
	}
	return published, nil
}

func (p *Poller) release(ctx context.Context, dc *domain.DueCommunication) {
	if err := p.repo.Release(ctx, dc.ID); err != nil {
		p.logger.ErrorContext(ctx, "Failed to release communication after publish failure",
			"error", err, "communication_id", dc.ID)
	}
}
