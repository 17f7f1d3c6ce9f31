package bookings

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/internal/notifications"
	"github.com/gigbridge/gigbridge-backend/internal/otp"
	"github.com/gigbridge/gigbridge-backend/internal/payments"
	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db"
	"github.com/gigbridge/gigbridge-backend/pkg/db/dbtest"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/gateway/gatewaytest"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox"
)

const testSecret = "rzp_test_secret"

type captureDeliverer struct {
	mu   sync.Mutex
	sent []otp.Delivery
	err  error
}

func (c *captureDeliverer) Deliver(_ context.Context, msg otp.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.err
}

func (c *captureDeliverer) last(t *testing.T) otp.Delivery {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent, "expected a delivered code")
	return c.sent[len(c.sent)-1]
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n notifications.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
}

func (c *captureNotifier) ofType(kind enums.NotificationType) []notifications.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []notifications.Notification
	for _, n := range c.sent {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	svc       Service
	conn      *gorm.DB
	fake      *gatewaytest.Fake
	deliverer *captureDeliverer
	notifier  *captureNotifier
	outbox    *outbox.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromConn(conn)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	otpSvc, err := otp.NewService(otp.NewRepository(conn), client,
		config.OTPConfig{TTL: 15 * time.Minute, MaxAttempts: 5, Pepper: "test-pepper"}, logg)
	require.NoError(t, err)

	fake := gatewaytest.New(testSecret)
	paymentsSvc, err := payments.NewService(payments.NewRepository(conn), fake,
		config.GatewayConfig{KeySecret: testSecret}, logg)
	require.NoError(t, err)

	outboxRepo := outbox.NewRepository(conn)
	h := &harness{
		conn:      conn,
		fake:      fake,
		deliverer: &captureDeliverer{},
		notifier:  &captureNotifier{},
		outbox:    outboxRepo,
	}
	h.svc, err = NewService(NewRepository(conn), client, otpSvc, paymentsSvc,
		outbox.NewService(outboxRepo, logg), h.notifier, h.deliverer, logg)
	require.NoError(t, err)
	return h
}

type parties struct {
	client Actor
	worker Actor
}

func newParties() parties {
	return parties{
		client: Actor{UserID: uuid.New(), Role: enums.ActorRoleClient},
		worker: Actor{UserID: uuid.New(), Role: enums.ActorRoleWorker},
	}
}

// seedInProgress creates a booking and walks it to in_progress.
func (h *harness) seedInProgress(t *testing.T, p parties, amount int64) *models.Booking {
	t.Helper()
	ctx := context.Background()
	booking, err := h.svc.Create(ctx, CreateInput{
		ClientID:        p.client.UserID,
		WorkerID:        p.worker.UserID,
		ServiceCategory: "plumbing",
		ScheduledAt:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		AmountDueMinor:  amount,
		Currency:        enums.CurrencyINR,
	})
	require.NoError(t, err)
	_, err = h.svc.Accept(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	started, err := h.svc.Start(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusInProgress, started.Status)
	return started
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.BookingStatus
		allowed  bool
	}{
		{enums.BookingStatusRequested, enums.BookingStatusAccepted, true},
		{enums.BookingStatusInProgress, enums.BookingStatusCompletionPending, true},
		{enums.BookingStatusCompletionPending, enums.BookingStatusCompleted, true},
		{enums.BookingStatusCompleted, enums.BookingStatusSettlementPending, true},
		{enums.BookingStatusSettlementPending, enums.BookingStatusSettled, true},
		{enums.BookingStatusInProgress, enums.BookingStatusCancelled, true},
		{enums.BookingStatusCompleted, enums.BookingStatusDisputed, true},
		{enums.BookingStatusInProgress, enums.BookingStatusCompleted, false},
		{enums.BookingStatusCompleted, enums.BookingStatusSettled, false},
		{enums.BookingStatusCompletionPending, enums.BookingStatusCancelled, false},
		{enums.BookingStatusSettled, enums.BookingStatusDisputed, false},
		{enums.BookingStatusCancelled, enums.BookingStatusRequested, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCompletionToSettlementFlow(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 1500)

	req, err := h.svc.RequestCompletion(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCompletionPending, req.Booking.Status)
	assert.Equal(t, enums.OtpPurposeClientVerifiesCompletion, req.Purpose)
	assert.Equal(t, p.client.UserID, req.RecipientID)

	delivered := h.deliverer.last(t)
	assert.Equal(t, p.client.UserID, delivered.RecipientID)
	assert.Equal(t, int64(900), delivered.ExpiresInSeconds)

	completed, err := h.svc.ConfirmCompletion(ctx, p.client, booking.ID, delivered.Code)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	settlement, err := h.svc.InitiateSettlement(ctx, p.client, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusSettlementPending, settlement.Booking.Status)
	assert.Equal(t, int64(1500), settlement.Order.AmountMinor)
	require.NotNil(t, settlement.Booking.PaymentOrderRef)
	assert.Equal(t, settlement.Order.ID, *settlement.Booking.PaymentOrderRef)

	again, err := h.svc.InitiateSettlement(ctx, p.client, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.Order.ID, again.Order.ID)
	assert.Equal(t, int32(1), h.fake.CreateCalls.Load())

	assert.Len(t, h.notifier.ofType(enums.NotificationTypeCompletionRequested), 1)
	confirmed := h.notifier.ofType(enums.NotificationTypeCompletionConfirmed)
	require.Len(t, confirmed, 1)
	assert.Equal(t, p.worker.UserID, confirmed[0].RecipientID)
	requested := h.notifier.ofType(enums.NotificationTypePaymentRequested)
	require.Len(t, requested, 1)
	assert.Equal(t, "15.00", requested[0].Payload["amount"])

	events, err := h.outbox.ListByAggregate(ctx, booking.ID)
	require.NoError(t, err)
	var created int
	for _, ev := range events {
		if ev.EventType == enums.EventPaymentOrderCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestClientInitiatedCompletionBindsCodeToWorker(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 800)

	req, err := h.svc.RequestCompletion(ctx, p.client, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OtpPurposeWorkerConfirmsWithClientCode, req.Purpose)
	assert.Equal(t, p.worker.UserID, req.RecipientID)

	code := h.deliverer.last(t).Code
	_, err = h.svc.ConfirmCompletion(ctx, p.client, booking.ID, code)
	assertCode(t, err, pkgerrors.CodeForbidden)

	completed, err := h.svc.ConfirmCompletion(ctx, p.worker, booking.ID, code)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCompleted, completed.Status)
}

func TestRequestCompletionRequiresInProgress(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking, err := h.svc.Create(ctx, CreateInput{
		ClientID: p.client.UserID, WorkerID: p.worker.UserID, ServiceCategory: "cleaning",
		ScheduledAt: time.Now().UTC(), AmountDueMinor: 500, Currency: enums.CurrencyINR,
	})
	require.NoError(t, err)

	_, err = h.svc.RequestCompletion(ctx, p.worker, booking.ID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	var challenges int64
	require.NoError(t, h.conn.Model(&models.OtpChallenge{}).Where("booking_id = ?", booking.ID).Count(&challenges).Error)
	assert.Zero(t, challenges)
	assert.Empty(t, h.deliverer.sent)
}

func TestRequestCompletionRejectsStrangers(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	booking := h.seedInProgress(t, p, 500)

	_, err := h.svc.RequestCompletion(context.Background(), Actor{UserID: uuid.New(), Role: enums.ActorRoleWorker}, booking.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestDeliveryFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t)
	h.deliverer.err = errors.New("pubsub down")
	p := newParties()
	booking := h.seedInProgress(t, p, 500)

	req, err := h.svc.RequestCompletion(context.Background(), p.worker, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCompletionPending, req.Booking.Status)
}

func TestConfirmCompletionWrongCodeKeepsBookingPending(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 500)
	_, err := h.svc.RequestCompletion(ctx, p.worker, booking.ID)
	require.NoError(t, err)

	code := h.deliverer.last(t).Code
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = h.svc.ConfirmCompletion(ctx, p.client, booking.ID, wrong)
	assertCode(t, err, pkgerrors.CodeOTPInvalid)

	current, err := h.svc.Get(ctx, p.client, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCompletionPending, current.Status)
}

func TestConfirmCompletionReplayReportsConsumed(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 500)
	_, err := h.svc.RequestCompletion(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	code := h.deliverer.last(t).Code

	_, err = h.svc.ConfirmCompletion(ctx, p.client, booking.ID, code)
	require.NoError(t, err)
	_, err = h.svc.ConfirmCompletion(ctx, p.client, booking.ID, code)
	assertCode(t, err, pkgerrors.CodeOTPAlreadyConsumed)
}

func TestConcurrentConfirmCompletionSingleWinner(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 500)
	_, err := h.svc.RequestCompletion(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	code := h.deliverer.last(t).Code

	const callers = 6
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.ConfirmCompletion(ctx, p.client, booking.ID, code)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assertCode(t, err, pkgerrors.CodeOTPAlreadyConsumed)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, h.notifier.ofType(enums.NotificationTypeCompletionConfirmed), 1)
}

func TestReissueCompletionCodeSupersedesPrevious(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 500)
	_, err := h.svc.RequestCompletion(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	first := h.deliverer.last(t).Code

	req, err := h.svc.ReissueCompletionCode(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, p.client.UserID, req.RecipientID)
	second := h.deliverer.last(t).Code

	if first != second {
		_, err = h.svc.ConfirmCompletion(ctx, p.client, booking.ID, first)
		require.Error(t, err)
	}
	completed, err := h.svc.ConfirmCompletion(ctx, p.client, booking.ID, second)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCompleted, completed.Status)

	_, err = h.svc.ReissueCompletionCode(ctx, p.worker, booking.ID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestInitiateSettlementGuards(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 500)

	_, err := h.svc.InitiateSettlement(ctx, p.client, booking.ID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
	assert.Equal(t, int32(0), h.fake.CreateCalls.Load())

	_, err = h.svc.RequestCompletion(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	_, err = h.svc.ConfirmCompletion(ctx, p.client, booking.ID, h.deliverer.last(t).Code)
	require.NoError(t, err)

	_, err = h.svc.InitiateSettlement(ctx, p.worker, booking.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestMarkSettled(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 500)

	_, err := h.svc.MarkSettled(ctx, nil, booking.ID, "order_x")
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	_, err = h.svc.RequestCompletion(ctx, p.worker, booking.ID)
	require.NoError(t, err)
	_, err = h.svc.ConfirmCompletion(ctx, p.client, booking.ID, h.deliverer.last(t).Code)
	require.NoError(t, err)
	settlement, err := h.svc.InitiateSettlement(ctx, p.client, booking.ID)
	require.NoError(t, err)

	settled, err := h.svc.MarkSettled(ctx, nil, booking.ID, settlement.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusSettled, settled.Status)
	require.NotNil(t, settled.SettledAt)

	again, err := h.svc.MarkSettled(ctx, nil, booking.ID, settlement.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, settled.Version, again.Version)

	_, err = h.svc.MarkSettled(ctx, nil, booking.ID, "order_other")
	assertCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestStaleVersionIsRejected(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 500)

	repo := NewRepository(h.conn)
	stale := *booking
	require.NoError(t, repo.UpdateVersioned(ctx, booking, map[string]any{"service_category": "electrical"}))

	err := repo.UpdateVersioned(ctx, &stale, map[string]any{"service_category": "painting"})
	assertCode(t, err, pkgerrors.CodeConcurrentModification)

	current, err := repo.FindByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "electrical", current.ServiceCategory)
	assert.Equal(t, int64(500), current.AmountDueMinor)
}

func TestCancelAndDispute(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()

	cancelled := h.seedInProgress(t, p, 500)
	out, err := h.svc.Cancel(ctx, p.client, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCancelled, out.Status)
	notes := h.notifier.ofType(enums.NotificationTypeBookingCancelled)
	require.Len(t, notes, 1)
	assert.Equal(t, p.worker.UserID, notes[0].RecipientID)

	disputed := h.seedInProgress(t, p, 500)
	_, err = h.svc.Dispute(ctx, p.client, disputed.ID, "no show")
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	_, err = h.svc.RequestCompletion(ctx, p.worker, disputed.ID)
	require.NoError(t, err)
	_, err = h.svc.Cancel(ctx, p.client, disputed.ID)
	assertCode(t, err, pkgerrors.CodeInvalidTransition)

	_, err = h.svc.Dispute(ctx, p.client, disputed.ID, "  ")
	assertCode(t, err, pkgerrors.CodeValidation)

	out, err = h.svc.Dispute(ctx, p.client, disputed.ID, "work left unfinished")
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusDisputed, out.Status)
	require.NotNil(t, out.DisputeReason)
	assert.Equal(t, "work left unfinished", *out.DisputeReason)
}

func TestGetHidesBookingFromStrangers(t *testing.T) {
	h := newHarness(t)
	p := newParties()
	ctx := context.Background()
	booking := h.seedInProgress(t, p, 500)

	_, err := h.svc.Get(ctx, Actor{UserID: uuid.New(), Role: enums.ActorRoleClient}, booking.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)

	got, err := h.svc.Get(ctx, Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	same := uuid.New()
	_, err := h.svc.Create(context.Background(), CreateInput{
		ClientID: same, WorkerID: same, ServiceCategory: "x",
		ScheduledAt: time.Now(), AmountDueMinor: 100, Currency: enums.CurrencyINR,
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = h.svc.Create(context.Background(), CreateInput{
		ClientID: uuid.New(), WorkerID: uuid.New(), ServiceCategory: "x",
		ScheduledAt: time.Now(), AmountDueMinor: 0, Currency: enums.CurrencyINR,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestRetryOnConflictStopsOnOtherErrors(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), 3, func(context.Context) error {
		calls++
		if calls < 3 {
			return pkgerrors.New(pkgerrors.CodeConcurrentModification, "conflict")
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "bad")
	})
	assertCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryOnConflict(context.Background(), 2, func(context.Context) error {
		calls++
		return pkgerrors.New(pkgerrors.CodeConcurrentModification, "conflict")
	})
	assertCode(t, err, pkgerrors.CodeConcurrentModification)
	assert.Equal(t, 3, calls)
}
