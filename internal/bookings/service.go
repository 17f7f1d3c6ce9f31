package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/internal/notifications"
	"github.com/gigbridge/gigbridge-backend/internal/otp"
	"github.com/gigbridge/gigbridge-backend/internal/payments"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/money"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/payloads"
)

const (
	defaultConflictRetries = 5
	maxDisputeReasonLength = 1000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Actor is the authenticated principal driving a booking operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// SystemActor is used by the reconciler and webhook paths.
var SystemActor = Actor{Role: enums.ActorRoleSystem}

// Privileged reports whether the actor may act on bookings it is not party to.
func (a Actor) Privileged() bool {
	return a.Role.IsValid() && !a.Role.IsParty()
}

func (a Actor) ref() *outbox.ActorRef {
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role.String()}
}

// Service owns the booking lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Booking, error)
	Get(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error)
	Accept(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error)
	Start(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error)
	// RequestCompletion moves the booking to completion_pending and issues a code
	// to the party that did not initiate.
	RequestCompletion(ctx context.Context, actor Actor, bookingID uuid.UUID) (*CompletionRequest, error)
	ConfirmCompletion(ctx context.Context, actor Actor, bookingID uuid.UUID, code string) (*models.Booking, error)
	ReissueCompletionCode(ctx context.Context, actor Actor, bookingID uuid.UUID) (*CompletionRequest, error)
	InitiateSettlement(ctx context.Context, actor Actor, bookingID uuid.UUID) (*Settlement, error)
	// MarkSettled runs inside tx when one is supplied. A booking already settled by
	// orderID is returned unchanged; one settled by another order is refused.
	MarkSettled(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, orderID string) (*models.Booking, error)
	Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error)
	Dispute(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*models.Booking, error)
}

// CreateInput seeds a booking in the requested state.
type CreateInput struct {
	ClientID        uuid.UUID
	WorkerID        uuid.UUID
	ServiceCategory string
	ScheduledAt     time.Time
	AmountDueMinor  int64
	Currency        enums.Currency
}

// CompletionRequest describes the challenge that was issued. The code itself only
// travels through the deliverer.
type CompletionRequest struct {
	Booking     *models.Booking
	Purpose     enums.OtpPurpose
	RecipientID uuid.UUID
	ExpiresAt   time.Time
}

// Settlement is what the client needs to open the gateway checkout.
type Settlement struct {
	Booking *models.Booking
	Order   *models.PaymentOrder
	KeyID   string
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

// WithConflictRetries bounds how often a version conflict is retried from a fresh read.
func WithConflictRetries(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.conflictRetries = n
		}
	}
}

type service struct {
	repo            Repository
	tx              txRunner
	otp             otp.Service
	payments        payments.Service
	outbox          outbox.Emitter
	notifier        notifications.Notifier
	deliverer       otp.Deliverer
	logg            *logger.Logger
	now             func() time.Time
	conflictRetries int
}

// NewService wires the booking state machine.
func NewService(
	repo Repository,
	tx txRunner,
	otpSvc otp.Service,
	paymentsSvc payments.Service,
	emitter outbox.Emitter,
	notifier notifications.Notifier,
	deliverer otp.Deliverer,
	logg *logger.Logger,
	opts ...Option,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if otpSvc == nil {
		return nil, fmt.Errorf("otp service required")
	}
	if paymentsSvc == nil {
		return nil, fmt.Errorf("payments service required")
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
	if deliverer == nil {
		deliverer = otp.LogDeliverer{Logger: logg}
	}
	s := &service{
		repo:            repo,
		tx:              tx,
		otp:             otpSvc,
		payments:        paymentsSvc,
		outbox:          emitter,
		notifier:        notifier,
		deliverer:       deliverer,
		logg:            logg,
		now:             func() time.Time { return time.Now().UTC() },
		conflictRetries: defaultConflictRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Booking, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	now := s.now()
	booking := &models.Booking{
		ID:              uuid.New(),
		ClientID:        input.ClientID,
		WorkerID:        input.WorkerID,
		ServiceCategory: strings.TrimSpace(input.ServiceCategory),
		ScheduledAt:     input.ScheduledAt.UTC(),
		Status:          enums.BookingStatusRequested,
		AmountDueMinor:  input.AmountDueMinor,
		Currency:        input.Currency,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	actor := Actor{UserID: input.ClientID, Role: enums.ActorRoleClient}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create booking")
		}
		return s.emitStateChanged(ctx, tx, booking, "", actor)
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func validateCreate(input CreateInput) error {
	switch {
	case input.ClientID == uuid.Nil || input.WorkerID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "client and worker are required")
	case input.ClientID == input.WorkerID:
		return pkgerrors.New(pkgerrors.CodeValidation, "client and worker must differ")
	case strings.TrimSpace(input.ServiceCategory) == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "service category is required")
	case input.ScheduledAt.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "scheduled time is required")
	case input.AmountDueMinor <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "amount due must be positive")
	case !input.Currency.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	return nil
}

func (s *service) Get(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.load(ctx, s.repo, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged() && booking.PartyRole(actor.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	return booking, nil
}

func (s *service) Accept(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	return s.simpleTransition(ctx, actor, bookingID, enums.BookingStatusAccepted, workerOnly, nil)
}

func (s *service) Start(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	return s.simpleTransition(ctx, actor, bookingID, enums.BookingStatusInProgress, workerOnly, nil)
}

func (s *service) Cancel(ctx context.Context, actor Actor, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.simpleTransition(ctx, actor, bookingID, enums.BookingStatusCancelled, anyParty,
		func(b *models.Booking, now time.Time) map[string]any {
			b.CancelledAt = &now
			return map[string]any{"cancelled_at": now}
		})
	if err != nil {
		return nil, err
	}
	s.notifyOthers(ctx, booking, actor, enums.NotificationTypeBookingCancelled, nil)
	return booking, nil
}

func (s *service) Dispute(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*models.Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason is required")
	}
	if len(reason) > maxDisputeReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason is too long")
	}
	booking, err := s.simpleTransition(ctx, actor, bookingID, enums.BookingStatusDisputed, anyParty,
		func(b *models.Booking, _ time.Time) map[string]any {
			b.DisputeReason = &reason
			return map[string]any{"dispute_reason": reason}
		})
	if err != nil {
		return nil, err
	}
	s.notifyOthers(ctx, booking, actor, enums.NotificationTypeBookingDisputed, map[string]any{"reason": reason})
	return booking, nil
}

type actorCheck func(b *models.Booking, actor Actor) error

func workerOnly(b *models.Booking, actor Actor) error {
	if actor.Privileged() || actor.UserID == b.WorkerID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "only the booked worker can do this")
}

func anyParty(b *models.Booking, actor Actor) error {
	if actor.Privileged() || b.PartyRole(actor.UserID) != "" {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "actor is not a party to this booking")
}

// simpleTransition covers edges whose only side effect is the row update and
// the state change event.
func (s *service) simpleTransition(
	ctx context.Context,
	actor Actor,
	bookingID uuid.UUID,
	to enums.BookingStatus,
	authorize actorCheck,
	extra func(b *models.Booking, now time.Time) map[string]any,
) (*models.Booking, error) {
	var result *models.Booking
	err := s.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			booking, err := s.load(ctx, repo, bookingID)
			if err != nil {
				return err
			}
			if err := authorize(booking, actor); err != nil {
				return err
			}
			now := s.now()
			updates := map[string]any{}
			if extra != nil {
				updates = extra(booking, now)
			}
			if err := s.apply(ctx, tx, booking, to, actor, updates); err != nil {
				return err
			}
			result = booking
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RequestCompletion(ctx context.Context, actor Actor, bookingID uuid.UUID) (*CompletionRequest, error) {
	var (
		booking *models.Booking
		issued  *otp.Issued
	)
	err := s.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			b, err := s.load(ctx, repo, bookingID)
			if err != nil {
				return err
			}
			initiator := b.PartyRole(actor.UserID)
			if initiator == "" {
				return pkgerrors.New(pkgerrors.CodeForbidden, "only the client or worker can request completion")
			}
			if err := s.apply(ctx, tx, b, enums.BookingStatusCompletionPending, actor, map[string]any{}); err != nil {
				return err
			}
			purpose, recipient := completionChallengeFor(b, initiator)
			iss, err := s.otp.Issue(ctx, tx, otp.IssueInput{
				BookingID:   b.ID,
				Purpose:     purpose,
				RecipientID: recipient,
			})
			if err != nil {
				return err
			}
			booking, issued = b, iss
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, issued)
	s.notifier.Notify(ctx, notifications.Notification{
		RecipientID: issued.Challenge.RecipientID,
		Type:        enums.NotificationTypeCompletionRequested,
		BookingID:   booking.ID,
		Payload:     map[string]any{"expires_in_seconds": int(issued.ExpiresIn.Seconds())},
	})
	return &CompletionRequest{
		Booking:     booking,
		Purpose:     issued.Challenge.Purpose,
		RecipientID: issued.Challenge.RecipientID,
		ExpiresAt:   issued.Challenge.ExpiresAt,
	}, nil
}

// completionChallengeFor binds the code to the party that did not initiate.
func completionChallengeFor(b *models.Booking, initiator enums.ActorRole) (enums.OtpPurpose, uuid.UUID) {
	if initiator == enums.ActorRoleWorker {
		return enums.OtpPurposeClientVerifiesCompletion, b.ClientID
	}
	return enums.OtpPurposeWorkerConfirmsWithClientCode, b.WorkerID
}

func (s *service) ConfirmCompletion(ctx context.Context, actor Actor, bookingID uuid.UUID, code string) (*models.Booking, error) {
	booking, err := s.load(ctx, s.repo, bookingID)
	if err != nil {
		return nil, err
	}
	confirmer := booking.PartyRole(actor.UserID)
	if confirmer == "" {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor is not a party to this booking")
	}
	// A completed booking falls through so a replayed code reports OTP_ALREADY_CONSUMED.
	if booking.Status != enums.BookingStatusCompletionPending && booking.Status != enums.BookingStatusCompleted {
		return nil, checkTransition(booking.Status, enums.BookingStatusCompleted)
	}

	challenge, err := s.otp.LatestChallenge(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if challenge.RecipientID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the code recipient can confirm completion")
	}
	if _, err := s.otp.ValidateAndConsume(ctx, bookingID, challenge.Purpose, code); err != nil {
		return nil, err
	}

	var result *models.Booking
	err = s.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			b, err := s.load(ctx, s.repo.WithTx(tx), bookingID)
			if err != nil {
				return err
			}
			if b.Status == enums.BookingStatusCompleted {
				result = b
				return nil
			}
			now := s.now()
			b.CompletedAt = &now
			if err := s.apply(ctx, tx, b, enums.BookingStatusCompleted, actor, map[string]any{"completed_at": now}); err != nil {
				return err
			}
			result = b
			return nil
		})
	})
	if err != nil {
		logCtx := s.logg.WithBookingID(ctx, bookingID.String())
		s.logg.Error(logCtx, "completion code consumed but booking not completed; reissue required", err)
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Notification{
		RecipientID: result.PartyID(confirmer.Counterpart()),
		Type:        enums.NotificationTypeCompletionConfirmed,
		BookingID:   result.ID,
	})
	return result, nil
}

func (s *service) ReissueCompletionCode(ctx context.Context, actor Actor, bookingID uuid.UUID) (*CompletionRequest, error) {
	booking, err := s.load(ctx, s.repo, bookingID)
	if err != nil {
		return nil, err
	}
	if err := anyParty(booking, actor); err != nil {
		return nil, err
	}
	if booking.Status != enums.BookingStatusCompletionPending {
		return nil, pkgerrors.New(
			pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("completion code cannot be reissued while booking is %s", booking.Status),
		)
	}

	purpose, recipient := completionChallengeFor(booking, booking.PartyRole(actor.UserID))
	if latest, err := s.otp.LatestChallenge(ctx, bookingID); err == nil {
		purpose, recipient = latest.Purpose, latest.RecipientID
	} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	issued, err := s.otp.Issue(ctx, nil, otp.IssueInput{BookingID: bookingID, Purpose: purpose, RecipientID: recipient})
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, issued)
	s.notifier.Notify(ctx, notifications.Notification{
		RecipientID: recipient,
		Type:        enums.NotificationTypeCompletionRequested,
		BookingID:   bookingID,
		Payload:     map[string]any{"expires_in_seconds": int(issued.ExpiresIn.Seconds()), "reissued": true},
	})
	return &CompletionRequest{
		Booking:     booking,
		Purpose:     purpose,
		RecipientID: recipient,
		ExpiresAt:   issued.Challenge.ExpiresAt,
	}, nil
}

func (s *service) InitiateSettlement(ctx context.Context, actor Actor, bookingID uuid.UUID) (*Settlement, error) {
	booking, err := s.load(ctx, s.repo, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged() && actor.UserID != booking.ClientID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the client can pay for a booking")
	}
	if booking.Status != enums.BookingStatusCompleted && booking.Status != enums.BookingStatusSettlementPending {
		return nil, checkTransition(booking.Status, enums.BookingStatusSettlementPending)
	}

	order, err := s.payments.CreateOrder(ctx, payments.CreateOrderInput{
		BookingID:   booking.ID,
		AmountMinor: booking.AmountDueMinor,
		Currency:    booking.Currency,
	})
	if err != nil {
		return nil, err
	}

	var (
		result  *models.Booking
		changed bool
	)
	err = s.retryOnConflict(ctx, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			b, err := s.load(ctx, repo, bookingID)
			if err != nil {
				return err
			}
			changed = false
			switch b.Status {
			case enums.BookingStatusCompleted:
				b.PaymentOrderRef = &order.ID
				if err := s.apply(ctx, tx, b, enums.BookingStatusSettlementPending, actor, map[string]any{"payment_order_ref": order.ID}); err != nil {
					return err
				}
				changed = true
			case enums.BookingStatusSettlementPending:
				if b.PaymentOrderRef == nil || *b.PaymentOrderRef != order.ID {
					b.PaymentOrderRef = &order.ID
					if err := repo.UpdateVersioned(ctx, b, map[string]any{"payment_order_ref": order.ID}); err != nil {
						return err
					}
					changed = true
				}
			default:
				return checkTransition(b.Status, enums.BookingStatusSettlementPending)
			}
			if changed {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventPaymentOrderCreated,
					AggregateType: enums.AggregatePaymentOrder,
					AggregateID:   b.ID,
					Actor:         actor.ref(),
					Data: payloads.PaymentOrderCreatedEvent{
						OrderID:     order.ID,
						BookingID:   b.ID,
						AmountMinor: order.AmountMinor,
						Currency:    order.Currency,
					},
				}); err != nil {
					return err
				}
			}
			result = b
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithSettlement(ctx, bookingID.String(), order.ID)
	s.logg.Info(logCtx, "settlement initiated")
	if changed {
		s.notifier.Notify(ctx, notifications.Notification{
			RecipientID: result.ClientID,
			Type:        enums.NotificationTypePaymentRequested,
			BookingID:   result.ID,
			Payload: map[string]any{
				"order_id": order.ID,
				"amount":   money.Format(order.AmountMinor, order.Currency),
				"currency": order.Currency,
			},
		})
	}
	return &Settlement{Booking: result, Order: order, KeyID: s.payments.KeyID()}, nil
}

func (s *service) MarkSettled(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, orderID string) (*models.Booking, error) {
	if tx != nil {
		return s.markSettled(ctx, tx, bookingID, orderID)
	}
	var result *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		b, err := s.markSettled(ctx, tx, bookingID, orderID)
		result = b
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) markSettled(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, orderID string) (*models.Booking, error) {
	b, err := s.load(ctx, s.repo.WithTx(tx), bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == enums.BookingStatusSettled {
		if b.PaymentOrderRef != nil && *b.PaymentOrderRef == orderID {
			return b, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "booking already settled through another payment order")
	}
	now := s.now()
	b.SettledAt = &now
	b.PaymentOrderRef = &orderID
	updates := map[string]any{"settled_at": now, "payment_order_ref": orderID}
	if err := s.apply(ctx, tx, b, enums.BookingStatusSettled, SystemActor, updates); err != nil {
		return nil, err
	}
	return b, nil
}

// apply validates the edge, performs the versioned write and queues the state
// change event. booking is updated in place.
func (s *service) apply(ctx context.Context, tx *gorm.DB, booking *models.Booking, to enums.BookingStatus, actor Actor, updates map[string]any) error {
	from := booking.Status
	if err := checkTransition(from, to); err != nil {
		return err
	}
	now := s.now()
	updates["status"] = to
	updates["updated_at"] = now
	if err := s.repo.WithTx(tx).UpdateVersioned(ctx, booking, updates); err != nil {
		return err
	}
	booking.Status = to
	booking.UpdatedAt = now
	return s.emitStateChanged(ctx, tx, booking, from, actor)
}

func (s *service) emitStateChanged(ctx context.Context, tx *gorm.DB, booking *models.Booking, from enums.BookingStatus, actor Actor) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBookingStateChanged,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         actor.ref(),
		Data: payloads.BookingStateChangedEvent{
			BookingID: booking.ID,
			From:      from,
			To:        booking.Status,
			Version:   booking.Version,
			ActorRole: actor.Role,
			ChangedAt: booking.UpdatedAt,
		},
	})
}

func (s *service) load(ctx context.Context, repo Repository, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := repo.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load booking")
	}
	return booking, nil
}

func (s *service) retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	return RetryOnConflict(ctx, s.conflictRetries, fn)
}

func (s *service) deliver(ctx context.Context, issued *otp.Issued) {
	if issued == nil {
		return
	}
	if err := s.deliverer.Deliver(ctx, otp.NewDelivery(issued)); err != nil {
		logCtx := s.logg.WithBookingID(ctx, issued.Challenge.BookingID.String())
		s.logg.Error(logCtx, "completion code delivery failed", err)
	}
}

// notifyOthers alerts every party except the actor.
func (s *service) notifyOthers(ctx context.Context, b *models.Booking, actor Actor, kind enums.NotificationType, payload map[string]any) {
	for _, recipient := range []uuid.UUID{b.ClientID, b.WorkerID} {
		if recipient == actor.UserID {
			continue
		}
		s.notifier.Notify(ctx, notifications.Notification{
			RecipientID: recipient,
			Type:        kind,
			BookingID:   b.ID,
			Payload:     payload,
		})
	}
}
