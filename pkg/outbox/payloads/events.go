package payloads

import (
	"time"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/google/uuid"
)

// BookingStateChangedEvent is emitted on every accepted booking transition.
type BookingStateChangedEvent struct {
	BookingID uuid.UUID           `json:"booking_id"`
	From      enums.BookingStatus `json:"from"`
	To        enums.BookingStatus `json:"to"`
	Version   int                 `json:"version"`
	ActorRole enums.ActorRole     `json:"actor_role"`
	ChangedAt time.Time           `json:"changed_at"`
}

// PaymentOrderCreatedEvent records a new gateway order for a booking.
type PaymentOrderCreatedEvent struct {
	OrderID     string         `json:"order_id"`
	BookingID   uuid.UUID      `json:"booking_id"`
	AmountMinor int64          `json:"amount_minor"`
	Currency    enums.Currency `json:"currency"`
}

// PaymentOrderResolvedEvent records the terminal status of a gateway order.
type PaymentOrderResolvedEvent struct {
	OrderID   string                   `json:"order_id"`
	BookingID uuid.UUID                `json:"booking_id"`
	Status    enums.PaymentOrderStatus `json:"status"`
	PaymentID string                   `json:"payment_id,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
}

// WalletCreditedEvent is emitted once per successful ledger credit.
type WalletCreditedEvent struct {
	TransactionID  uuid.UUID `json:"transaction_id"`
	WalletOwnerID  uuid.UUID `json:"wallet_owner_id"`
	BookingID      uuid.UUID `json:"booking_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	AmountMinor    int64     `json:"amount_minor"`
	BalanceMinor   int64     `json:"balance_minor"`
}

// NotificationRequestedEvent asks the delivery service to alert a booking party.
type NotificationRequestedEvent struct {
	RecipientID uuid.UUID              `json:"recipient_id"`
	Type        enums.NotificationType `json:"type"`
	BookingID   uuid.UUID              `json:"booking_id"`
	Payload     map[string]any         `json:"payload,omitempty"`
}
