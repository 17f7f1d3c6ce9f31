package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// PaymentOrder is one attempt to collect payment for a booking. ID is assigned by
// the gateway.
type PaymentOrder struct {
	ID                      string                   `gorm:"column:id;primaryKey"`
	BookingID               uuid.UUID                `gorm:"column:booking_id;type:uuid;not null"`
	AmountMinor             int64                    `gorm:"column:amount_minor;not null"`
	Currency                enums.Currency           `gorm:"column:currency;not null"`
	Receipt                 string                   `gorm:"column:receipt;not null"`
	Status                  enums.PaymentOrderStatus `gorm:"column:status;type:payment_order_status;not null"`
	GatewayPaymentID        *string                  `gorm:"column:gateway_payment_id"`
	GatewaySignaturePayload *string                  `gorm:"column:gateway_signature_payload"`
	FailureReason           *string                  `gorm:"column:failure_reason"`
	CreatedAt               time.Time                `gorm:"column:created_at;autoCreateTime"`
	LastPolledAt            *time.Time               `gorm:"column:last_polled_at"`
	ResolvedAt              *time.Time               `gorm:"column:resolved_at"`
}
