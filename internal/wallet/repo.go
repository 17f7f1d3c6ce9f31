package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gigbridge/gigbridge-backend/pkg/db"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
)

// Repository persists the append-only wallet ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// InsertIfAbsent inserts the row unless its order idempotency key already exists.
	InsertIfAbsent(ctx context.Context, row *models.WalletTransaction) (bool, error)
	FindByKey(ctx context.Context, key string) (*models.WalletTransaction, error)
	Balance(ctx context.Context, ownerID uuid.UUID) (int64, error)
	List(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error)
	ListChronological(ctx context.Context, ownerID uuid.UUID) ([]models.WalletTransaction, error)
	LockOwner(ctx context.Context, ownerID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) InsertIfAbsent(ctx context.Context, row *models.WalletTransaction) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_idempotency_key"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindByKey(ctx context.Context, key string) (*models.WalletTransaction, error) {
	var row models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("order_idempotency_key = ?", key).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Balance(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN direction = ? THEN amount_minor ELSE -amount_minor END), 0)", enums.LedgerDirectionCredit).
		Where("wallet_owner_id = ?", ownerID).
		Scan(&balance).Error
	return balance, err
}

func (r *repository) List(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("wallet_owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListChronological(ctx context.Context, ownerID uuid.UUID) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("wallet_owner_id = ?", ownerID).
		Order("created_at ASC").
		Order("running_balance_snapshot ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LockOwner serializes snapshot computation per wallet for the rest of the
// transaction. SQLite already serializes writers, so it is a no-op there.
func (r *repository) LockOwner(ctx context.Context, ownerID uuid.UUID) error {
	if db.Dialect(r.db) != db.DialectPostgres {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", ownerID.String()).Error
}

// IsNotFound reports a missing ledger row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
