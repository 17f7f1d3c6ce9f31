package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/internal/notifications"
	"github.com/gigbridge/gigbridge-backend/internal/payments"
	"github.com/gigbridge/gigbridge-backend/internal/wallet"
	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/metrics"
	"github.com/gigbridge/gigbridge-backend/pkg/money"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/payloads"
)

// Settlement paths, used as metric labels.
const (
	PathConfirm   = "confirm"
	PathPoll      = "poll"
	PathWebhook   = "webhook"
	PathReconcile = "reconcile"
)

const (
	defaultConflictRetries = 5
	webhookConsumer        = "gateway-webhook"
)

var errDuplicateCredit = errors.New("credit already posted for order")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type webhookGuard interface {
	Claim(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

// Service turns verified payments into exactly one wallet credit and a settled booking.
type Service interface {
	// PollStatus asks the gateway about orderID and applies a terminal answer.
	// It is safe to call concurrently.
	PollStatus(ctx context.Context, orderID string) (*StatusResult, error)
	ConfirmAndSettle(ctx context.Context, orderID, paymentID, signature string) (*StatusResult, error)
	// AwaitSettlement polls until the order is terminal or the policy runs out.
	// Running out returns RECONCILIATION_TIMEOUT alongside the last observed state
	// and never mutates anything.
	AwaitSettlement(ctx context.Context, orderID string, policy Policy) (*StatusResult, error)
	SettleFromWebhook(ctx context.Context, body []byte, signature, eventID string) (*StatusResult, error)
	ReconcileStale(ctx context.Context) (*ReconcileSummary, error)
	Status(ctx context.Context, orderID string) (*StatusResult, error)
}

// StatusResult is the externally visible settlement state of an order.
type StatusResult struct {
	OrderID       string                   `json:"order_id"`
	BookingID     uuid.UUID                `json:"booking_id"`
	OrderStatus   enums.PaymentOrderStatus `json:"order_status"`
	BookingStatus enums.BookingStatus      `json:"booking_status"`
	AmountMinor   int64                    `json:"amount_minor"`
	Currency      enums.Currency           `json:"currency"`
	Settled       bool                     `json:"settled"`
	// Credit is set only on the call that posted the ledger row.
	Credit *models.WalletTransaction `json:"-"`
}

// Terminal reports whether polling can stop.
func (r *StatusResult) Terminal() bool {
	if r == nil {
		return false
	}
	return r.Settled || r.OrderStatus == enums.PaymentOrderStatusFailed || r.OrderStatus == enums.PaymentOrderStatusExpired
}

// Policy bounds AwaitSettlement.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPolicy is the configured poll interval and ceiling.
func DefaultPolicy(cfg config.SettlementConfig) Policy {
	return Policy{Interval: cfg.PollInterval, MaxAttempts: cfg.MaxPollAttempts}
}

// ReconcileSummary counts what a reconcile pass did.
type ReconcileSummary struct {
	Scanned int
	Settled int
	Failed  int
	Errors  int
}

// Option customizes the service.
type Option func(*service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWebhookGuard deduplicates webhook deliveries by event id.
func WithWebhookGuard(guard webhookGuard) Option {
	return func(s *service) {
		s.guard = guard
	}
}

// WithMetrics records settlement outcomes.
func WithMetrics(m *metrics.SettlementMetrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

type service struct {
	tx           txRunner
	bookings     bookings.Service
	payments     payments.Service
	paymentsRepo payments.Repository
	wallet       wallet.Service
	outbox       outbox.Emitter
	notifier     notifications.Notifier
	guard        webhookGuard
	metrics      *metrics.SettlementMetrics
	cfg          config.SettlementConfig
	logg         *logger.Logger
	now          func() time.Time
}

// NewService wires the settlement reconciler.
func NewService(
	tx txRunner,
	bookingsSvc bookings.Service,
	paymentsSvc payments.Service,
	paymentsRepo payments.Repository,
	walletSvc wallet.Service,
	emitter outbox.Emitter,
	notifier notifications.Notifier,
	cfg config.SettlementConfig,
	logg *logger.Logger,
	opts ...Option,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if bookingsSvc == nil {
		return nil, fmt.Errorf("bookings service required")
	}
	if paymentsSvc == nil || paymentsRepo == nil {
		return nil, fmt.Errorf("payments service and repository required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	if cfg.MaxConflictRetry <= 0 {
		cfg.MaxConflictRetry = defaultConflictRetries
	}
	s := &service{
		tx:           tx,
		bookings:     bookingsSvc,
		payments:     paymentsSvc,
		paymentsRepo: paymentsRepo,
		wallet:       walletSvc,
		outbox:       emitter,
		notifier:     notifier,
		cfg:          cfg,
		logg:         logg,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) Status(ctx context.Context, orderID string) (*StatusResult, error) {
	order, err := s.payments.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, order)
}

func (s *service) PollStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	return s.poll(ctx, orderID, PathPoll)
}

func (s *service) poll(ctx context.Context, orderID, path string) (*StatusResult, error) {
	order, err := s.payments.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsResolved() {
		return s.describe(ctx, order)
	}

	remote, err := s.payments.FetchStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.paymentsRepo.TouchPolled(ctx, orderID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stamp poll time")
	}

	switch remote.Status {
	case enums.PaymentOrderStatusPaid:
		// Server-to-server answer, so no client signature is needed.
		return s.settleVerified(ctx, order, nil, nil, path)
	case enums.PaymentOrderStatusFailed, enums.PaymentOrderStatusExpired:
		return s.resolveUnpaid(ctx, order, remote, path)
	default:
		s.metrics.ObserveOutcome(path, metrics.OutcomePending)
		return s.describe(ctx, order)
	}
}

func (s *service) ConfirmAndSettle(ctx context.Context, orderID, paymentID, signature string) (*StatusResult, error) {
	orderID, paymentID, signature = strings.TrimSpace(orderID), strings.TrimSpace(paymentID), strings.TrimSpace(signature)
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id, payment_id and signature are required")
	}
	if !s.payments.VerifyCallback(ctx, orderID, paymentID, signature) {
		s.metrics.IncSignatureRejected("callback")
		s.metrics.ObserveOutcome(PathConfirm, metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeSignatureRejected, "payment signature could not be verified")
	}
	order, err := s.payments.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.settleVerified(ctx, order, &paymentID, &signature, PathConfirm)
}

func (s *service) AwaitSettlement(ctx context.Context, orderID string, policy Policy) (*StatusResult, error) {
	if policy.Interval <= 0 {
		policy.Interval = s.cfg.PollInterval
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = s.cfg.MaxPollAttempts
	}

	var last *StatusResult
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		result, err := s.PollStatus(ctx, orderID)
		switch {
		case err == nil:
			last = result
			if result.Terminal() {
				return result, nil
			}
		case pkgerrors.IsCode(err, pkgerrors.CodeDependency):
			logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID), map[string]any{"attempt": attempt})
			s.logg.Warn(logCtx, "gateway unavailable while awaiting settlement")
		default:
			return nil, err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(policy.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}

	s.metrics.IncAwaitTimeout()
	logCtx := s.logg.WithOrderID(ctx, orderID)
	s.logg.Warn(logCtx, "settlement not confirmed within poll budget")
	return last, pkgerrors.New(pkgerrors.CodeReconciliationTimeout, "payment not yet confirmed").
		WithDetails(map[string]any{"order_id": orderID, "attempts": policy.MaxAttempts})
}

func (s *service) ReconcileStale(ctx context.Context) (*ReconcileSummary, error) {
	limit := s.cfg.ReconcileBatch
	if limit <= 0 {
		limit = 50
	}
	orders, err := s.paymentsRepo.ListStaleOpen(ctx, s.now().Add(-s.cfg.StaleAfter), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stale payment orders")
	}

	summary := &ReconcileSummary{Scanned: len(orders)}
	for _, order := range orders {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		result, err := s.poll(ctx, order.ID, PathReconcile)
		if err != nil {
			summary.Errors++
			logCtx := s.logg.WithSettlement(ctx, order.BookingID.String(), order.ID)
			s.logg.Error(logCtx, "reconcile poll failed", err)
			continue
		}
		switch {
		case result.Settled:
			summary.Settled++
		case result.Terminal():
			summary.Failed++
		}
	}
	return summary, nil
}

// settleVerified moves the order to paid, settles the booking and posts the
// credit in one transaction. The conditional resolve runs first: an order that
// another caller already marked paid is a duplicate, and an order resolved as
// failed or expired is refused without a credit. A booking settled through a
// different order rolls the whole transaction back, so at most one order per
// booking ever reaches paid.
func (s *service) settleVerified(ctx context.Context, order *models.PaymentOrder, paymentID, signature *string, path string) (*StatusResult, error) {
	ctx = s.logg.WithSettlement(ctx, order.BookingID.String(), order.ID)
	booking, err := s.bookings.Get(ctx, bookings.SystemActor, order.BookingID)
	if err != nil {
		return nil, err
	}

	var (
		credit    *wallet.CreditResult
		settled   *models.Booking
		duplicate bool
	)
	err = bookings.RetryOnConflict(ctx, s.cfg.MaxConflictRetry, func(ctx context.Context) error {
		duplicate = false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			orders := s.paymentsRepo.WithTx(tx)
			resolved, err := orders.Resolve(ctx, order.ID, payments.Resolution{
				Status:           enums.PaymentOrderStatusPaid,
				GatewayPaymentID: paymentID,
				SignaturePayload: signature,
				At:               s.now(),
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve payment order")
			}
			if !resolved {
				current, err := orders.FindByID(ctx, order.ID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload payment order")
				}
				if current.Status == enums.PaymentOrderStatusPaid {
					return errDuplicateCredit
				}
				return pkgerrors.New(pkgerrors.CodeInvalidTransition,
					fmt.Sprintf("payment order already resolved as %s", current.Status))
			}

			b, err := s.bookings.MarkSettled(ctx, tx, booking.ID, order.ID)
			if err != nil {
				return err
			}
			res, err := s.wallet.Credit(ctx, tx, wallet.CreditInput{
				WalletOwnerID:       booking.WorkerID,
				BookingID:           booking.ID,
				OrderIdempotencyKey: order.ID,
				AmountMinor:         order.AmountMinor,
			})
			if err != nil {
				return err
			}
			if res.Duplicate {
				return errDuplicateCredit
			}
			if err := s.emitSettled(ctx, tx, order, res, paymentID); err != nil {
				return err
			}
			credit, settled = res, b
			return nil
		})
		if errors.Is(err, errDuplicateCredit) {
			duplicate = true
			b, err := s.bookings.MarkSettled(ctx, nil, booking.ID, order.ID)
			if err != nil {
				return err
			}
			settled = b
			return nil
		}
		return err
	})
	if err != nil {
		s.metrics.ObserveOutcome(path, metrics.OutcomeFailed)
		s.logg.Error(ctx, "settlement failed", err)
		return nil, err
	}

	if duplicate {
		s.metrics.IncDuplicateCredit()
		s.metrics.ObserveOutcome(path, metrics.OutcomeSettled)
		current, err := s.payments.GetOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		return s.result(current, settled, nil), nil
	}

	s.metrics.IncCredit()
	s.metrics.ObserveOutcome(path, metrics.OutcomeSettled)
	s.logg.Info(s.logg.WithField(ctx, "path", path), "booking settled")

	amount := money.Format(order.AmountMinor, order.Currency)
	s.notifier.Notify(ctx, notifications.Notification{
		RecipientID: settled.WorkerID,
		Type:        enums.NotificationTypeBookingSettled,
		BookingID:   settled.ID,
		Payload:     map[string]any{"amount": amount, "currency": order.Currency, "balance": money.Format(credit.Balance, order.Currency)},
	})
	s.notifier.Notify(ctx, notifications.Notification{
		RecipientID: settled.ClientID,
		Type:        enums.NotificationTypeBookingSettled,
		BookingID:   settled.ID,
		Payload:     map[string]any{"amount": amount, "currency": order.Currency},
	})

	paid := *order
	paid.Status = enums.PaymentOrderStatusPaid
	return s.result(&paid, settled, credit.Transaction), nil
}

func (s *service) emitSettled(ctx context.Context, tx *gorm.DB, order *models.PaymentOrder, credit *wallet.CreditResult, paymentID *string) error {
	actor := &outbox.ActorRef{Role: enums.ActorRoleSystem.String()}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventWalletCredited,
		AggregateType: enums.AggregateWalletTransaction,
		AggregateID:   credit.Transaction.ID,
		Actor:         actor,
		Data: payloads.WalletCreditedEvent{
			TransactionID:  credit.Transaction.ID,
			WalletOwnerID:  credit.Transaction.WalletOwnerID,
			BookingID:      order.BookingID,
			IdempotencyKey: order.ID,
			AmountMinor:    credit.Transaction.AmountMinor,
			BalanceMinor:   credit.Balance,
		},
	}); err != nil {
		return err
	}
	resolved := payloads.PaymentOrderResolvedEvent{
		OrderID:   order.ID,
		BookingID: order.BookingID,
		Status:    enums.PaymentOrderStatusPaid,
	}
	if paymentID != nil {
		resolved.PaymentID = *paymentID
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentOrderResolved,
		AggregateType: enums.AggregatePaymentOrder,
		AggregateID:   order.BookingID,
		Actor:         actor,
		Data:          resolved,
	})
}

// resolveUnpaid closes a failed or expired order. The booking stays
// settlement_pending so the client can start a new order.
func (s *service) resolveUnpaid(ctx context.Context, order *models.PaymentOrder, remote *payments.GatewayStatus, path string) (*StatusResult, error) {
	reason := fmt.Sprintf("gateway reported %s", remote.Raw)
	var resolved bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		resolved, err = s.paymentsRepo.WithTx(tx).Resolve(ctx, order.ID, payments.Resolution{
			Status:        remote.Status,
			FailureReason: &reason,
			At:            s.now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve payment order")
		}
		if !resolved {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentOrderResolved,
			AggregateType: enums.AggregatePaymentOrder,
			AggregateID:   order.BookingID,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem.String()},
			Data: payloads.PaymentOrderResolvedEvent{
				OrderID:   order.ID,
				BookingID: order.BookingID,
				Status:    remote.Status,
				Reason:    reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	current, err := s.payments.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	result, err := s.describe(ctx, current)
	if err != nil {
		return nil, err
	}
	if resolved {
		s.metrics.ObserveOutcome(path, metrics.OutcomeFailed)
		logCtx := s.logg.WithSettlement(ctx, order.BookingID.String(), order.ID)
		s.logg.Warn(logCtx, "payment order closed without payment")
		booking, err := s.bookings.Get(ctx, bookings.SystemActor, order.BookingID)
		if err == nil {
			s.notifier.Notify(ctx, notifications.Notification{
				RecipientID: booking.ClientID,
				Type:        enums.NotificationTypePaymentFailed,
				BookingID:   booking.ID,
				Payload:     map[string]any{"order_id": order.ID, "status": remote.Status},
			})
		}
	}
	return result, nil
}

func (s *service) describe(ctx context.Context, order *models.PaymentOrder) (*StatusResult, error) {
	booking, err := s.bookings.Get(ctx, bookings.SystemActor, order.BookingID)
	if err != nil {
		return nil, err
	}
	return s.result(order, booking, nil), nil
}

func (s *service) result(order *models.PaymentOrder, booking *models.Booking, credit *models.WalletTransaction) *StatusResult {
	return &StatusResult{
		OrderID:       order.ID,
		BookingID:     order.BookingID,
		OrderStatus:   order.Status,
		BookingStatus: booking.Status,
		AmountMinor:   order.AmountMinor,
		Currency:      order.Currency,
		Settled:       booking.Status == enums.BookingStatusSettled && order.Status == enums.PaymentOrderStatusPaid,
		Credit:        credit,
	}
}
