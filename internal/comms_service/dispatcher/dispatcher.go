package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gleeworld/comms-gateway/internal/comms_service/adapters/senders"
	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Dispatcher executes the recipient x channel fan-out for one
// communication, writing one delivery row per runnable pair.
//
// Failures are isolated per pair: a channel error is recorded on the
// delivery row and tallied into the summary, and every remaining pair
// still runs.
type Dispatcher struct {
	deliveries    domain.DeliveryRepository
	profiles      domain.ProfileRepository
	notifications domain.NotificationRepository

	email     senders.EmailSender
	massEmail senders.BulkEmailSender
	sms       senders.SMSSender

	logger      *slog.Logger
	workers     int
	sendTimeout time.Duration
	now         func() time.Time
}

// New creates a Dispatcher. workers <= 1 means sequential execution,
// matching the original pipeline; larger values bound the worker pool.
// now is injectable for tests; nil means time.Now.
func New(
	deliveries domain.DeliveryRepository,
	profiles domain.ProfileRepository,
	notifications domain.NotificationRepository,
	email senders.EmailSender,
	massEmail senders.BulkEmailSender,
	sms senders.SMSSender,
	logger *slog.Logger,
	workers int,
	sendTimeout time.Duration,
	now func() time.Time,
) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		deliveries:    deliveries,
		profiles:      profiles,
		notifications: notifications,
		email:         email,
		massEmail:     massEmail,
		sms:           sms,
		logger:        logger.With("component", "dispatcher"),
		workers:       workers,
		sendTimeout:   sendTimeout,
		now:           now,
	}
}

// summaryAccumulator folds per-item outcomes into a DeliverySummary
// behind a mutex so workers can report concurrently.
type summaryAccumulator struct {
	mu      sync.Mutex
	summary domain.DeliverySummary
}

func (a *summaryAccumulator) addSent(ch domain.Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch ch {
	case domain.ChannelEmail:
		a.summary.Email++
	case domain.ChannelMassEmail:
		a.summary.MassEmail++
	case domain.ChannelSMS:
		a.summary.SMS++
	case domain.ChannelInApp:
		a.summary.InApp++
	}
}

func (a *summaryAccumulator) addSkipped() {
	a.mu.Lock()
	a.summary.Skipped++
	a.mu.Unlock()
}

func (a *summaryAccumulator) addError(ch domain.Channel, email string, err error) {
	a.mu.Lock()
	a.summary.Errors = append(a.summary.Errors, fmt.Sprintf("%s to %s: %v", ch, email, err))
	a.mu.Unlock()
}

// Dispatch runs the full Cartesian product for the communication and
// returns the aggregate summary. It never returns early on per-pair
// failures; ctx cancellation is the only way to stop a run.
func (d *Dispatcher) Dispatch(ctx context.Context, comm *domain.Communication, recipients []domain.Recipient, channels []domain.Channel) domain.DeliverySummary {
	timer := prometheus.NewTimer(dispatchDurationHist)
	defer timer.ObserveDuration()

	items := BuildWorkItems(recipients, channels)
	d.logger.InfoContext(ctx, "Dispatching communication",
		"communication_id", comm.ID, "recipients", len(recipients), "channels", len(channels),
		"work_items", len(items), "workers", d.workers)

	acc := &summaryAccumulator{summary: domain.DeliverySummary{Errors: []string{}}}

	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for _, item := range items {
		item := item
		g.Go(func() error {
			d.executeItem(ctx, comm, item, acc)
			return nil // Per-pair failures are tallied, never propagated.
		})
	}
	_ = g.Wait()

	d.logger.InfoContext(ctx, "Dispatch complete",
		"communication_id", comm.ID,
		"sent", acc.summary.SentCount(),
		"skipped", acc.summary.Skipped,
		"errors", len(acc.summary.Errors))
	return acc.summary
}

func (d *Dispatcher) executeItem(ctx context.Context, comm *domain.Communication, item WorkItem, acc *summaryAccumulator) {
	logger := d.logger.With("communication_id", comm.ID, "channel", item.Channel, "recipient", item.Recipient.Email)

	if item.Skip {
		logger.DebugContext(ctx, "Skipping work item", "reason", item.SkipReason)
		deliveriesCounter.WithLabelValues(string(item.Channel), "skipped").Inc()
		acc.addSkipped()
		return
	}

	// SMS needs a phone number; confirm it exists before any delivery
	// row is created so no row can sit in pending forever.
	var phoneNumber string
	if item.Channel == domain.ChannelSMS {
		profile, err := d.profiles.GetByUserID(ctx, item.Recipient.UserID.UUID)
		if err != nil {
			logger.ErrorContext(ctx, "Profile lookup for SMS failed", "error", err)
			deliveriesCounter.WithLabelValues(string(item.Channel), "failed").Inc()
			acc.addError(item.Channel, item.Recipient.Email, fmt.Errorf("profile lookup: %w", err))
			return
		}
		if profile.PhoneNumber == nil || *profile.PhoneNumber == "" {
			logger.DebugContext(ctx, "Skipping SMS, no phone number on profile")
			deliveriesCounter.WithLabelValues(string(item.Channel), "skipped").Inc()
			acc.addSkipped()
			return
		}
		phoneNumber = *profile.PhoneNumber
	}

	delivery := domain.NewPendingDelivery(comm.ID, item.Recipient, item.Channel, d.now().UTC())
	if err := d.deliveries.Create(ctx, delivery); err != nil {
		logger.ErrorContext(ctx, "Failed to create delivery row", "error", err)
		deliveriesCounter.WithLabelValues(string(item.Channel), "failed").Inc()
		acc.addError(item.Channel, item.Recipient.Email, fmt.Errorf("create delivery: %w", err))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	// The SMTP and Twilio calls cannot be interrupted mid-flight, so the
	// deadline is enforced here: on expiry the worker moves on, the late
	// result is discarded and the row is finalized failed.
	sendTimer := prometheus.NewTimer(channelSendDurationHist.WithLabelValues(string(item.Channel)))
	resultCh := make(chan error, 1)
	go func() {
		resultCh <- d.sendToChannel(sendCtx, comm, item, phoneNumber)
	}()
	var sendErr error
	select {
	case sendErr = <-resultCh:
		if sendErr != nil && sendCtx.Err() == context.DeadlineExceeded {
			sendErr = fmt.Errorf("send timeout after %s: %w", d.sendTimeout, sendErr)
		}
	case <-sendCtx.Done():
		sendErr = fmt.Errorf("send timeout after %s: %w", d.sendTimeout, sendCtx.Err())
	}
	sendTimer.ObserveDuration()

	if sendErr != nil {
		logger.WarnContext(ctx, "Channel send failed", "error", sendErr)
		if err := d.deliveries.MarkFailed(ctx, delivery.ID, sendErr.Error()); err != nil {
			logger.ErrorContext(ctx, "Failed to mark delivery failed", "delivery_id", delivery.ID, "error", err)
		}
		deliveriesCounter.WithLabelValues(string(item.Channel), "failed").Inc()
		acc.addError(item.Channel, item.Recipient.Email, sendErr)
		return
	}

	sentAt := d.now().UTC()
	if err := d.deliveries.MarkSent(ctx, delivery.ID, sentAt); err != nil {
		logger.ErrorContext(ctx, "Failed to mark delivery sent", "delivery_id", delivery.ID, "error", err)
	}
	deliveriesCounter.WithLabelValues(string(item.Channel), "sent").Inc()
	acc.addSent(item.Channel)
}

func (d *Dispatcher) sendToChannel(ctx context.Context, comm *domain.Communication, item WorkItem, phoneNumber string) error {
	switch item.Channel {
	case domain.ChannelEmail:
		return d.email.Send(ctx, item.Recipient.Email, comm.Title, comm.Content)

	case domain.ChannelMassEmail:
		return d.massEmail.Send(ctx, comm.Title, comm.Content, []senders.BulkRecipient{
			{Email: item.Recipient.Email, Name: item.Recipient.Name},
		})

	case domain.ChannelSMS:
		return d.sms.Send(ctx, phoneNumber, comm.Title+"\n\n"+comm.Content)

	case domain.ChannelInApp:
		return d.notifications.Insert(ctx, &domain.Notification{
			ID:        uuid.New(),
			UserID:    item.Recipient.UserID.UUID,
			Title:     comm.Title,
			Message:   comm.Content,
			Type:      comm.Type,
			CreatedAt: d.now().UTC(),
		})
	}
	return fmt.Errorf("unsupported channel: %s", item.Channel)
}
