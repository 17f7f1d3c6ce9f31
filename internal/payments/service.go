package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/gateway"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

// Service is the payment gateway adapter.
type Service interface {
	// CreateOrder returns the booking's open order, creating one at the gateway
	// only when none exists.
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.PaymentOrder, error)
	VerifyCallback(ctx context.Context, orderID, paymentID, signature string) bool
	VerifyWebhook(ctx context.Context, body []byte, signature string) bool
	FetchStatus(ctx context.Context, orderID string) (*GatewayStatus, error)
	GetOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	KeyID() string
}

// CreateOrderInput describes the amount to collect for a booking.
type CreateOrderInput struct {
	BookingID   uuid.UUID
	AmountMinor int64
	Currency    enums.Currency
}

// GatewayStatus is the gateway's current answer for an order.
type GatewayStatus struct {
	OrderID    string
	Status     enums.PaymentOrderStatus
	Raw        string
	AmountPaid int64
}

type service struct {
	repo          Repository
	client        gateway.Client
	keySecret     string
	webhookSecret string
	now           func() time.Time
	logg          *logger.Logger
}

// NewService wires the adapter around a gateway client.
func NewService(repo Repository, client gateway.Client, cfg config.GatewayConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment order repository required")
	}
	if client == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, fmt.Errorf("gateway key secret required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          repo,
		client:        client,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		now:           time.Now,
		logg:          logg,
	}, nil
}

func (s *service) KeyID() string {
	return s.client.KeyID()
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.PaymentOrder, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	if input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	existing, err := s.repo.FindOpenByBooking(ctx, input.BookingID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load open payment order")
	}

	receipt := receiptFor(input.BookingID)
	remote, err := s.client.CreateOrder(ctx, gateway.CreateOrderRequest{
		AmountMinor: input.AmountMinor,
		Currency:    input.Currency.String(),
		Receipt:     receipt,
		Notes:       map[string]string{"booking_id": input.BookingID.String()},
	})
	if err != nil {
		return nil, err
	}

	order := &models.PaymentOrder{
		ID:          remote.ID,
		BookingID:   input.BookingID,
		AmountMinor: input.AmountMinor,
		Currency:    input.Currency,
		Receipt:     receipt,
		Status:      enums.PaymentOrderStatusCreated,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment order")
		}
		// A concurrent caller stored its order first; the gateway order we just
		// created is never shown to anyone and will lapse unpaid.
		winner, findErr := s.repo.FindOpenByBooking(ctx, input.BookingID)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "reload payment order")
		}
		ctx = s.logg.WithFields(ctx, map[string]any{
			"booking_id":      input.BookingID.String(),
			"order_id":        winner.ID,
			"orphan_order_id": remote.ID,
		})
		s.logg.Warn(ctx, "concurrent payment order creation, reusing existing order")
		return winner, nil
	}

	ctx = s.logg.WithSettlement(ctx, input.BookingID.String(), order.ID)
	s.logg.Info(ctx, "payment order created")
	return order, nil
}

func (s *service) VerifyCallback(ctx context.Context, orderID, paymentID, signature string) bool {
	if gateway.VerifyPaymentSignature(s.keySecret, orderID, paymentID, signature) {
		return true
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":        orderID,
		"idempotency_key": orderID,
		"payment_id":      paymentID,
	})
	s.logg.Warn(ctx, "payment callback signature rejected")
	return false
}

func (s *service) VerifyWebhook(ctx context.Context, body []byte, signature string) bool {
	if gateway.VerifyWebhookSignature(s.webhookSecret, body, signature) {
		return true
	}
	s.logg.Warn(ctx, "gateway webhook signature rejected")
	return false
}

func (s *service) FetchStatus(ctx context.Context, orderID string) (*GatewayStatus, error) {
	remote, err := s.client.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &GatewayStatus{
		OrderID:    remote.ID,
		Status:     gateway.MapStatus(remote.Status),
		Raw:        remote.Status,
		AmountPaid: remote.AmountPaid,
	}, nil
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment order")
	}
	return order, nil
}

func receiptFor(bookingID uuid.UUID) string {
	return "bk_" + bookingID.String()
}
