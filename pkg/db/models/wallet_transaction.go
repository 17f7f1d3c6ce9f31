package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// WalletTransaction is an append-only ledger row. OrderIdempotencyKey is unique.
type WalletTransaction struct {
	ID                     uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletOwnerID          uuid.UUID             `gorm:"column:wallet_owner_id;type:uuid;not null"`
	BookingID              uuid.UUID             `gorm:"column:booking_id;type:uuid;not null"`
	OrderIdempotencyKey    string                `gorm:"column:order_idempotency_key;not null;uniqueIndex"`
	Direction              enums.LedgerDirection `gorm:"column:direction;type:ledger_direction;not null"`
	AmountMinor            int64                 `gorm:"column:amount_minor;not null"`
	RunningBalanceSnapshot int64                 `gorm:"column:running_balance_snapshot;not null"`
	CreatedAt              time.Time             `gorm:"column:created_at;autoCreateTime"`
}

// SignedAmount returns the amount with the direction applied.
func (w WalletTransaction) SignedAmount() int64 {
	return w.Direction.Sign() * w.AmountMinor
}
