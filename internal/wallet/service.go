package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the ledger-backed wallet. Balances are always derived from rows.
type Service interface {
	// Credit posts a credit keyed by the payment order id. tx may be nil, in which
	// case the credit runs in its own transaction.
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*CreditResult, error)
	Balance(ctx context.Context, ownerID uuid.UUID) (int64, error)
	History(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error)
	VerifySnapshots(ctx context.Context, ownerID uuid.UUID) (*SnapshotReport, error)
}

// CreditInput is the immutable data a ledger credit requires.
type CreditInput struct {
	WalletOwnerID       uuid.UUID
	BookingID           uuid.UUID
	OrderIdempotencyKey string
	AmountMinor         int64
}

// CreditResult reports the ledger row for the key. Duplicate is set when another
// caller already posted it; that is not an error.
type CreditResult struct {
	Transaction *models.WalletTransaction
	Duplicate   bool
	Balance     int64
}

// SnapshotDrift is a row whose stored running balance disagrees with the ledger.
type SnapshotDrift struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Stored        int64     `json:"stored"`
	Expected      int64     `json:"expected"`
}

// SnapshotReport is the result of replaying a wallet's ledger.
type SnapshotReport struct {
	OwnerID      uuid.UUID       `json:"owner_id"`
	Transactions int             `json:"transactions"`
	Balance      int64           `json:"balance"`
	Drift        []SnapshotDrift `json:"drift,omitempty"`
}

type service struct {
	repo Repository
	tx   txRunner
	now  func() time.Time
}

// NewService wires a wallet service with the provided repository.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, tx: tx, now: time.Now}, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*CreditResult, error) {
	if input.WalletOwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet owner id is required")
	}
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	if strings.TrimSpace(input.OrderIdempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order idempotency key is required")
	}
	if input.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	if tx != nil {
		return s.credit(ctx, s.repo.WithTx(tx), input)
	}

	var result *CreditResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.credit(ctx, s.repo.WithTx(tx), input)
		return err
	})
	return result, err
}

func (s *service) credit(ctx context.Context, repo Repository, input CreditInput) (*CreditResult, error) {
	if err := repo.LockOwner(ctx, input.WalletOwnerID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock wallet")
	}
	balance, err := repo.Balance(ctx, input.WalletOwnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read wallet balance")
	}

	row := &models.WalletTransaction{
		ID:                     uuid.New(),
		WalletOwnerID:          input.WalletOwnerID,
		BookingID:              input.BookingID,
		OrderIdempotencyKey:    input.OrderIdempotencyKey,
		Direction:              enums.LedgerDirectionCredit,
		AmountMinor:            input.AmountMinor,
		RunningBalanceSnapshot: balance + input.AmountMinor,
		CreatedAt:              s.now().UTC(),
	}
	inserted, err := repo.InsertIfAbsent(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert wallet credit")
	}
	if inserted {
		return &CreditResult{Transaction: row, Balance: row.RunningBalanceSnapshot}, nil
	}

	existing, err := repo.FindByKey(ctx, input.OrderIdempotencyKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load existing wallet credit")
	}
	return &CreditResult{Transaction: existing, Duplicate: true, Balance: balance}, nil
}

func (s *service) Balance(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	if ownerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "wallet owner id is required")
	}
	balance, err := s.repo.Balance(ctx, ownerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read wallet balance")
	}
	return balance, nil
}

func (s *service) History(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet owner id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, err := s.repo.List(ctx, ownerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet transactions")
	}
	return rows, nil
}

func (s *service) VerifySnapshots(ctx context.Context, ownerID uuid.UUID) (*SnapshotReport, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet owner id is required")
	}
	rows, err := s.repo.ListChronological(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list wallet transactions")
	}

	report := &SnapshotReport{OwnerID: ownerID, Transactions: len(rows)}
	var running int64
	for _, row := range rows {
		running += row.SignedAmount()
		if row.RunningBalanceSnapshot != running {
			report.Drift = append(report.Drift, SnapshotDrift{
				TransactionID: row.ID,
				Stored:        row.RunningBalanceSnapshot,
				Expected:      running,
			})
		}
	}
	report.Balance = running
	return report, nil
}
