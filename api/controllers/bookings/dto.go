package bookings

import (
	"time"

	"github.com/google/uuid"

	internalbookings "github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/gigbridge/gigbridge-backend/pkg/money"
)

type confirmCompletionRequest struct {
	Code string `json:"code" validate:"required,numeric,max=10"`
}

type disputeRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// BookingResponse is the public view of a booking.
type BookingResponse struct {
	ID              uuid.UUID           `json:"id"`
	ClientID        uuid.UUID           `json:"client_id"`
	WorkerID        uuid.UUID           `json:"worker_id"`
	ServiceCategory string              `json:"service_category"`
	ScheduledAt     time.Time           `json:"scheduled_at"`
	Status          enums.BookingStatus `json:"status"`
	AmountDueMinor  int64               `json:"amount_due_minor"`
	AmountDue       string              `json:"amount_due"`
	Currency        enums.Currency      `json:"currency"`
	PaymentOrderRef *string             `json:"payment_order_ref,omitempty"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	SettledAt       *time.Time          `json:"settled_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	DisputeReason   *string             `json:"dispute_reason,omitempty"`
	Version         int                 `json:"version"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// CompletionResponse tells the initiator who must enter the code and until when.
type CompletionResponse struct {
	Booking     BookingResponse  `json:"booking"`
	Purpose     enums.OtpPurpose `json:"purpose"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// SettlementResponse carries what the client needs to open the gateway checkout.
type SettlementResponse struct {
	Booking     BookingResponse          `json:"booking"`
	OrderID     string                   `json:"order_id"`
	OrderStatus enums.PaymentOrderStatus `json:"order_status"`
	AmountMinor int64                    `json:"amount_minor"`
	Amount      string                   `json:"amount"`
	Currency    enums.Currency           `json:"currency"`
	Receipt     string                   `json:"receipt"`
	KeyID       string                   `json:"key_id"`
}

func toBookingResponse(b *models.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		ClientID:        b.ClientID,
		WorkerID:        b.WorkerID,
		ServiceCategory: b.ServiceCategory,
		ScheduledAt:     b.ScheduledAt,
		Status:          b.Status,
		AmountDueMinor:  b.AmountDueMinor,
		AmountDue:       money.Format(b.AmountDueMinor, b.Currency),
		Currency:        b.Currency,
		PaymentOrderRef: b.PaymentOrderRef,
		CompletedAt:     b.CompletedAt,
		SettledAt:       b.SettledAt,
		CancelledAt:     b.CancelledAt,
		DisputeReason:   b.DisputeReason,
		Version:         b.Version,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toCompletionResponse(req *internalbookings.CompletionRequest) CompletionResponse {
	return CompletionResponse{
		Booking:     toBookingResponse(req.Booking),
		Purpose:     req.Purpose,
		RecipientID: req.RecipientID,
		ExpiresAt:   req.ExpiresAt,
	}
}

func toSettlementResponse(s *internalbookings.Settlement) SettlementResponse {
	return SettlementResponse{
		Booking:     toBookingResponse(s.Booking),
		OrderID:     s.Order.ID,
		OrderStatus: s.Order.Status,
		AmountMinor: s.Order.AmountMinor,
		Amount:      money.Format(s.Order.AmountMinor, s.Order.Currency),
		Currency:    s.Order.Currency,
		Receipt:     s.Order.Receipt,
		KeyID:       s.KeyID,
	}
}
