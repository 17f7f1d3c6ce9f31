package otp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// Repository persists completion challenges.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, challenge *models.OtpChallenge) error
	InvalidateLive(ctx context.Context, bookingID uuid.UUID, purpose enums.OtpPurpose, at time.Time) (int64, error)
	FindLatest(ctx context.Context, bookingID uuid.UUID, purpose enums.OtpPurpose) (*models.OtpChallenge, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.OtpChallenge, error)
	FindLiveByBooking(ctx context.Context, bookingID uuid.UUID) (*models.OtpChallenge, error)
	FindLatestByBooking(ctx context.Context, bookingID uuid.UUID) (*models.OtpChallenge, error)
	ConsumeIfMatch(ctx context.Context, id uuid.UUID, codeHash string, now time.Time, maxAttempts int) (bool, error)
	RecordFailure(ctx context.Context, id uuid.UUID, now time.Time, maxAttempts int) (int64, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a challenge repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, challenge *models.OtpChallenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *repository) InvalidateLive(ctx context.Context, bookingID uuid.UUID, purpose enums.OtpPurpose, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OtpChallenge{}).
		Where("booking_id = ? AND purpose = ?", bookingID, purpose).
		Where("consumed_at IS NULL AND invalidated_at IS NULL").
		Update("invalidated_at", at)
	return res.RowsAffected, res.Error
}

// FindLatest prefers the live challenge, then the most recently issued one.
func (r *repository) FindLatest(ctx context.Context, bookingID uuid.UUID, purpose enums.OtpPurpose) (*models.OtpChallenge, error) {
	var challenge models.OtpChallenge
	if err := r.db.WithContext(ctx).
		Where("booking_id = ? AND purpose = ?", bookingID, purpose).
		Order("CASE WHEN consumed_at IS NULL AND invalidated_at IS NULL THEN 0 ELSE 1 END").
		Order("issued_at DESC").
		First(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OtpChallenge, error) {
	var challenge models.OtpChallenge
	if err := r.db.WithContext(ctx).First(&challenge, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *repository) FindLiveByBooking(ctx context.Context, bookingID uuid.UUID) (*models.OtpChallenge, error) {
	var challenge models.OtpChallenge
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Where("consumed_at IS NULL AND invalidated_at IS NULL").
		Order("issued_at DESC").
		First(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *repository) FindLatestByBooking(ctx context.Context, bookingID uuid.UUID) (*models.OtpChallenge, error) {
	var challenge models.OtpChallenge
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("issued_at DESC").
		First(&challenge).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

// ConsumeIfMatch is the single compare-and-consume statement. Exactly one
// concurrent caller can observe a true result for a given challenge.
func (r *repository) ConsumeIfMatch(ctx context.Context, id uuid.UUID, codeHash string, now time.Time, maxAttempts int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OtpChallenge{}).
		Where("id = ? AND code_hash = ?", id, codeHash).
		Where("consumed_at IS NULL AND invalidated_at IS NULL").
		Where("expires_at >= ? AND attempt_count < ?", now, maxAttempts).
		Update("consumed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordFailure bumps the attempt counter and invalidates the challenge once it
// reaches maxAttempts. Both writes share one transaction and bind invalidated_at
// as a plain parameter so the column type is never inferred from an expression.
// It returns the number of live challenges whose counter moved (0 or 1).
func (r *repository) RecordFailure(ctx context.Context, id uuid.UUID, now time.Time, maxAttempts int) (int64, error) {
	var bumped int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OtpChallenge{}).
			Where("id = ?", id).
			Where("consumed_at IS NULL AND invalidated_at IS NULL").
			Update("attempt_count", gorm.Expr("attempt_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		bumped = res.RowsAffected
		if bumped == 0 {
			return nil
		}
		return tx.Model(&models.OtpChallenge{}).
			Where("id = ? AND invalidated_at IS NULL AND attempt_count >= ?", id, maxAttempts).
			Update("invalidated_at", now).Error
	})
	if err != nil {
		return 0, err
	}
	return bumped, nil
}

func (r *repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.OtpChallenge{})
	return res.RowsAffected, res.Error
}
