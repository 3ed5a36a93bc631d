package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gleeworld/comms-gateway/internal/comms_service/adapters/senders"
	"github.com/gleeworld/comms-gateway/internal/comms_service/domain"
)

// MockDeliveryRepository is a mock implementation of domain.DeliveryRepository
type MockDeliveryRepository struct {
	mock.Mock
}

func (m *MockDeliveryRepository) Create(ctx context.Context, d *domain.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDeliveryRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	args := m.Called(ctx, id, sentAt)
	return args.Error(0)
}

func (m *MockDeliveryRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	args := m.Called(ctx, id, errorMessage)
	return args.Error(0)
}

func (m *MockDeliveryRepository) ListByCommunicationID(ctx context.Context, communicationID uuid.UUID) ([]*domain.Delivery, error) {
	args := m.Called(ctx, communicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Delivery), args.Error(1)
}

// MockProfileRepository is a mock implementation of domain.ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepository) ListSuperAdmins(ctx context.Context) ([]*domain.Profile, error) {
	args := m.Called(ctx)
	return nil, args.Error(1)
}

func (m *MockProfileRepository) ListByVoicePart(ctx context.Context, voicePart string) ([]*domain.Profile, error) {
	args := m.Called(ctx, voicePart)
	return nil, args.Error(1)
}

func (m *MockProfileRepository) ListByGraduationYear(ctx context.Context, year int) ([]*domain.Profile, error) {
	args := m.Called(ctx, year)
	return nil, args.Error(1)
}

func (m *MockProfileRepository) ListByRole(ctx context.Context, role string) ([]*domain.Profile, error) {
	args := m.Called(ctx, role)
	return nil, args.Error(1)
}

func (m *MockProfileRepository) ListRegistered(ctx context.Context) ([]*domain.Profile, error) {
	args := m.Called(ctx)
	return nil, args.Error(1)
}

// MockNotificationRepository is a mock implementation of domain.NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registeredRecipient(email string) domain.Recipient {
	return domain.Recipient{
		UserID: uuid.NullUUID{UUID: uuid.New(), Valid: true},
		Email:  email,
		Name:   "Member " + email,
	}
}

func testCommunication() *domain.Communication {
	return &domain.Communication{
		ID:       uuid.New(),
		Title:    "Rehearsal Update",
		Content:  "Rehearsal moved to 7pm.",
		Type:     "announcement",
		Priority: "normal",
		Status:   domain.CommunicationStatusSending,
	}
}

func newTestDispatcher(
	deliveries *MockDeliveryRepository,
	profiles *MockProfileRepository,
	notifications *MockNotificationRepository,
	email senders.EmailSender,
	sms senders.SMSSender,
) *Dispatcher {
	logger := testLogger()
	if email == nil {
		email = senders.NewMockEmailSender(logger, "", 0)
	}
	if sms == nil {
		sms = senders.NewMockSMSSender(logger, "", 0)
	}
	return New(
		deliveries, profiles, notifications,
		email,
		senders.NewMockBulkEmailSender(logger, "", 0),
		sms,
		logger, 1, time.Second, nil,
	)
}

func TestBuildWorkItems_CartesianProduct(t *testing.T) {
	recipients := []domain.Recipient{
		registeredRecipient("a@x.com"),
		{Email: "guest@x.com"}, // no user id
	}
	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelSMS, domain.ChannelInApp}

	items := BuildWorkItems(recipients, channels)

	assert.Len(t, items, 6)
	// Recipient-major ordering.
	assert.Equal(t, "a@x.com", items[0].Recipient.Email)
	assert.Equal(t, domain.ChannelEmail, items[0].Channel)
	assert.Equal(t, "guest@x.com", items[3].Recipient.Email)

	// Account-bound channels are skipped for the unregistered recipient.
	assert.False(t, items[1].Skip) // a@x.com / sms
	assert.True(t, items[4].Skip)  // guest / sms
	assert.True(t, items[5].Skip)  // guest / in_app
	assert.False(t, items[3].Skip) // guest / email
}

func TestDispatch_EmailFanOut(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveries.On("MarkSent", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(nil)

	email := senders.NewMockEmailSender(testLogger(), "", 0)
	d := newTestDispatcher(deliveries, profiles, notifications, email, nil)

	recipients := []domain.Recipient{registeredRecipient("a@x.com"), registeredRecipient("b@x.com")}
	summary := d.Dispatch(context.Background(), testCommunication(), recipients, []domain.Channel{domain.ChannelEmail})

	assert.Equal(t, 2, summary.Email)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.Errors)
	assert.ElementsMatch(t, []string{"a@x.com", "b@x.com"}, email.Sent)
	deliveries.AssertNumberOfCalls(t, "Create", 2)
	deliveries.AssertNumberOfCalls(t, "MarkSent", 2)
}

func TestDispatch_SMSWithoutUserIDIsSkippedWithoutRow(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	d := newTestDispatcher(deliveries, profiles, notifications, nil, nil)

	guest := domain.Recipient{Email: "guest@x.com", Name: "Guest"}
	summary := d.Dispatch(context.Background(), testCommunication(), []domain.Recipient{guest}, []domain.Channel{domain.ChannelSMS})

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.SentCount())
	assert.Empty(t, summary.Errors)
	deliveries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDispatch_SMSWithoutPhoneIsSkippedWithoutRow(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	rec := registeredRecipient("nophone@x.com")
	profiles.On("GetByUserID", mock.Anything, rec.UserID.UUID).
		Return(&domain.Profile{UserID: rec.UserID, Email: rec.Email}, nil)

	sms := senders.NewMockSMSSender(testLogger(), "", 0)
	d := newTestDispatcher(deliveries, profiles, notifications, nil, sms)

	summary := d.Dispatch(context.Background(), testCommunication(), []domain.Recipient{rec}, []domain.Channel{domain.ChannelSMS})

	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, sms.Sent)
	deliveries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDispatch_SMSWithPhoneSendsToNumber(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	rec := registeredRecipient("withphone@x.com")
	phone := "+15551234567"
	profiles.On("GetByUserID", mock.Anything, rec.UserID.UUID).
		Return(&domain.Profile{UserID: rec.UserID, Email: rec.Email, PhoneNumber: &phone}, nil)
	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveries.On("MarkSent", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(nil)

	sms := senders.NewMockSMSSender(testLogger(), "", 0)
	d := newTestDispatcher(deliveries, profiles, notifications, nil, sms)

	summary := d.Dispatch(context.Background(), testCommunication(), []domain.Recipient{rec}, []domain.Channel{domain.ChannelSMS})

	assert.Equal(t, 1, summary.SMS)
	assert.Equal(t, []string{phone}, sms.Sent)
}

func TestDispatch_InAppInsertsNotification(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	rec := registeredRecipient("member@x.com")
	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveries.On("MarkSent", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(nil)

	comm := testCommunication()
	notifications.On("Insert", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == rec.UserID.UUID && n.Title == comm.Title && n.Type == comm.Type
	})).Return(nil)

	d := newTestDispatcher(deliveries, profiles, notifications, nil, nil)
	summary := d.Dispatch(context.Background(), comm, []domain.Recipient{rec}, []domain.Channel{domain.ChannelInApp})

	assert.Equal(t, 1, summary.InApp)
	notifications.AssertExpectations(t)
}

func TestDispatch_OneFailureDoesNotStopOthers(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveries.On("MarkSent", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(nil)
	deliveries.On("MarkFailed", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil)

	// failRate 1.0 makes every transactional email attempt fail.
	failingEmail := senders.NewMockEmailSender(testLogger(), "", 1.0)
	d := newTestDispatcher(deliveries, profiles, notifications, failingEmail, nil)

	recipients := []domain.Recipient{registeredRecipient("a@x.com")}
	channels := []domain.Channel{domain.ChannelEmail, domain.ChannelMassEmail}
	summary := d.Dispatch(context.Background(), testCommunication(), recipients, channels)

	assert.Equal(t, 0, summary.Email)
	assert.Equal(t, 1, summary.MassEmail)
	assert.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "email to a@x.com")
	deliveries.AssertNumberOfCalls(t, "MarkFailed", 1)
	deliveries.AssertNumberOfCalls(t, "MarkSent", 1)
}

// stalledEmailSender blocks well past any per-send deadline and never
// checks the context, like a hung SMTP conversation.
type stalledEmailSender struct {
	delay time.Duration
}

func (s *stalledEmailSender) Send(ctx context.Context, to, subject, body string) error {
	time.Sleep(s.delay)
	return nil
}

func (s *stalledEmailSender) GetName() string { return "stalled_email" }

func TestDispatch_HungSenderIsFailedAtDeadline(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveries.On("MarkFailed", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "send timeout")
	})).Return(nil)

	logger := testLogger()
	d := New(
		deliveries, profiles, notifications,
		&stalledEmailSender{delay: 2 * time.Second},
		senders.NewMockBulkEmailSender(logger, "", 0),
		senders.NewMockSMSSender(logger, "", 0),
		logger, 1, 50*time.Millisecond, nil,
	)

	start := time.Now()
	summary := d.Dispatch(context.Background(), testCommunication(),
		[]domain.Recipient{registeredRecipient("a@x.com")}, []domain.Channel{domain.ChannelEmail})

	// The batch must not wait out the hung send.
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, summary.Email)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "send timeout after")
	deliveries.AssertNumberOfCalls(t, "MarkFailed", 1)
	deliveries.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything)
}

// rejectingEmailSender fails sends to one address and delivers the rest.
type rejectingEmailSender struct {
	mu     sync.Mutex
	failTo string
	sent   []string
}

func (s *rejectingEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if to == s.failTo {
		return errors.New("mailbox unavailable")
	}
	s.mu.Lock()
	s.sent = append(s.sent, to)
	s.mu.Unlock()
	return nil
}

func (s *rejectingEmailSender) GetName() string { return "rejecting_email" }

func TestDispatch_FirstRecipientFailureDoesNotStopSecond(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveries.On("MarkSent", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(nil)
	deliveries.On("MarkFailed", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string")).Return(nil)

	email := &rejectingEmailSender{failTo: "a@x.com"}
	d := newTestDispatcher(deliveries, profiles, notifications, email, nil)

	recipients := []domain.Recipient{registeredRecipient("a@x.com"), registeredRecipient("b@x.com")}
	summary := d.Dispatch(context.Background(), testCommunication(), recipients, []domain.Channel{domain.ChannelEmail})

	assert.Equal(t, 1, summary.Email)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "email to a@x.com")
	assert.Equal(t, []string{"b@x.com"}, email.sent)
	deliveries.AssertNumberOfCalls(t, "MarkFailed", 1)
	deliveries.AssertNumberOfCalls(t, "MarkSent", 1)
}

func TestDispatch_DeliveryRowFailureCountsAsError(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*domain.Delivery")).
		Return(errors.New("insert failed"))

	email := senders.NewMockEmailSender(testLogger(), "", 0)
	d := newTestDispatcher(deliveries, profiles, notifications, email, nil)

	summary := d.Dispatch(context.Background(), testCommunication(),
		[]domain.Recipient{registeredRecipient("a@x.com")}, []domain.Channel{domain.ChannelEmail})

	assert.Equal(t, 0, summary.SentCount())
	assert.Len(t, summary.Errors, 1)
	// The send is never attempted when the row cannot be created.
	assert.Empty(t, email.Sent)
}

func TestDispatch_ParallelWorkersCoverAllItems(t *testing.T) {
	deliveries := new(MockDeliveryRepository)
	profiles := new(MockProfileRepository)
	notifications := new(MockNotificationRepository)

	deliveries.On("Create", mock.Anything, mock.AnythingOfType("*domain.Delivery")).Return(nil)
	deliveries.On("MarkSent", mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("time.Time")).Return(nil)

	logger := testLogger()
	email := senders.NewMockEmailSender(logger, "", 0)
	d := New(
		deliveries, profiles, notifications,
		email,
		senders.NewMockBulkEmailSender(logger, "", 0),
		senders.NewMockSMSSender(logger, "", 0),
		logger, 4, time.Second, nil,
	)

	var recipients []domain.Recipient
	for i := 0; i < 20; i++ {
		recipients = append(recipients, registeredRecipient(uuid.NewString()+"@x.com"))
	}
	summary := d.Dispatch(context.Background(), testCommunication(), recipients, []domain.Channel{domain.ChannelEmail})

	assert.Equal(t, 20, summary.Email)
	assert.Len(t, email.Sent, 20)
}
