package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// Resolution is the terminal state written onto an order.
type Resolution struct {
	Status           enums.PaymentOrderStatus
	GatewayPaymentID *string
	SignaturePayload *string
	FailureReason    *string
	At               time.Time
}

// Repository persists payment orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PaymentOrder) error
	FindByID(ctx context.Context, id string) (*models.PaymentOrder, error)
	FindOpenByBooking(ctx context.Context, bookingID uuid.UUID) (*models.PaymentOrder, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentOrder, error)
	TouchPolled(ctx context.Context, id string, at time.Time) error
	// Resolve moves a created order to a terminal status. It returns false when
	// the order was already resolved.
	Resolve(ctx context.Context, id string, res Resolution) (bool, error)
	ListStaleOpen(ctx context.Context, polledBefore time.Time, limit int) ([]models.PaymentOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PaymentOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOpenByBooking(ctx context.Context, bookingID uuid.UUID) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, enums.PaymentOrderStatusCreated).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	if err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) TouchPolled(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ?", id).
		Update("last_polled_at", at).Error
}

func (r *repository) Resolve(ctx context.Context, id string, res Resolution) (bool, error) {
	updates := map[string]any{
		"status":      res.Status,
		"resolved_at": res.At,
	}
	if res.GatewayPaymentID != nil {
		updates["gateway_payment_id"] = *res.GatewayPaymentID
	}
	if res.SignaturePayload != nil {
		updates["gateway_signature_payload"] = *res.SignaturePayload
	}
	if res.FailureReason != nil {
		updates["failure_reason"] = *res.FailureReason
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", id, enums.PaymentOrderStatusCreated).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ListStaleOpen(ctx context.Context, polledBefore time.Time, limit int) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.PaymentOrderStatusCreated).
		Where("(last_polled_at IS NULL AND created_at < ?) OR last_polled_at < ?", polledBefore, polledBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
