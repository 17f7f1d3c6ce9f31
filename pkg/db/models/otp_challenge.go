package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// OtpChallenge stores the keyed hash of a completion code, never the code itself.
type OtpChallenge struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID     uuid.UUID        `gorm:"column:booking_id;type:uuid;not null"`
	Purpose       enums.OtpPurpose `gorm:"column:purpose;type:otp_purpose;not null"`
	RecipientID   uuid.UUID        `gorm:"column:recipient_id;type:uuid;not null"`
	CodeHash      string           `gorm:"column:code_hash;not null"`
	IssuedAt      time.Time        `gorm:"column:issued_at;not null"`
	ExpiresAt     time.Time        `gorm:"column:expires_at;not null"`
	ConsumedAt    *time.Time       `gorm:"column:consumed_at"`
	InvalidatedAt *time.Time       `gorm:"column:invalidated_at"`
	AttemptCount  int              `gorm:"column:attempt_count;not null;default:0"`
}

// IsLive reports whether the challenge can still be consumed at now.
func (c OtpChallenge) IsLive(now time.Time) bool {
	return c.ConsumedAt == nil && c.InvalidatedAt == nil && !now.After(c.ExpiresAt)
}
