package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// Booking is a scheduled job between a client and a worker.
type Booking struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ClientID        uuid.UUID           `gorm:"column:client_id;type:uuid;not null"`
	WorkerID        uuid.UUID           `gorm:"column:worker_id;type:uuid;not null"`
	ServiceCategory string              `gorm:"column:service_category;not null"`
	ScheduledAt     time.Time           `gorm:"column:scheduled_at;not null"`
	Status          enums.BookingStatus `gorm:"column:status;type:booking_status;not null"`
	AmountDueMinor  int64               `gorm:"column:amount_due_minor;not null"`
	Currency        enums.Currency      `gorm:"column:currency;not null"`
	PaymentOrderRef *string             `gorm:"column:payment_order_ref"`
	CompletedAt     *time.Time          `gorm:"column:completed_at"`
	SettledAt       *time.Time          `gorm:"column:settled_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	DisputeReason   *string             `gorm:"column:dispute_reason"`
	Version         int                 `gorm:"column:version;not null;default:1"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// PartyRole returns the role userID plays on the booking, or "" when unrelated.
func (b Booking) PartyRole(userID uuid.UUID) enums.ActorRole {
	switch userID {
	case b.ClientID:
		return enums.ActorRoleClient
	case b.WorkerID:
		return enums.ActorRoleWorker
	default:
		return ""
	}
}

// PartyID returns the user id holding role on the booking.
func (b Booking) PartyID(role enums.ActorRole) uuid.UUID {
	switch role {
	case enums.ActorRoleClient:
		return b.ClientID
	case enums.ActorRoleWorker:
		return b.WorkerID
	default:
		return uuid.Nil
	}
}
