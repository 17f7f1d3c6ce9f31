package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

const (
	defaultTTL         = 15 * time.Minute
	defaultMaxAttempts = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues and consumes completion codes.
type Service interface {
	// Issue supersedes any live challenge for (booking, purpose) and returns the
	// plaintext code exactly once. tx may be nil.
	Issue(ctx context.Context, tx *gorm.DB, input IssueInput) (*Issued, error)
	ValidateAndConsume(ctx context.Context, bookingID uuid.UUID, purpose enums.OtpPurpose, code string) (*models.OtpChallenge, error)
	OpenChallenge(ctx context.Context, bookingID uuid.UUID) (*models.OtpChallenge, error)
	// LatestChallenge returns the most recent challenge in any state.
	LatestChallenge(ctx context.Context, bookingID uuid.UUID) (*models.OtpChallenge, error)
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// IssueInput identifies who must present the code.
type IssueInput struct {
	BookingID   uuid.UUID
	Purpose     enums.OtpPurpose
	RecipientID uuid.UUID
}

// Issued carries the plaintext code for out-of-band delivery. It is never stored.
type Issued struct {
	Challenge *models.OtpChallenge
	Code      string
	ExpiresIn time.Duration
}

// Option customizes the service.
type Option func(*service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

type service struct {
	repo        Repository
	tx          txRunner
	hasher      *hasher
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	logg        *logger.Logger
}

// NewService builds the completion code service.
func NewService(repo Repository, tx txRunner, cfg config.OTPConfig, logg *logger.Logger, opts ...Option) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("otp repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	h, err := newHasher(cfg.Pepper)
	if err != nil {
		return nil, err
	}
	s := &service{
		repo:        repo,
		tx:          tx,
		hasher:      h,
		ttl:         cfg.TTL,
		maxAttempts: cfg.MaxAttempts,
		now:         time.Now,
		logg:        logg,
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *service) Issue(ctx context.Context, tx *gorm.DB, input IssueInput) (*Issued, error) {
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	if !input.Purpose.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid otp purpose")
	}
	if input.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient id is required")
	}

	code, err := generateCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate completion code")
	}
	now := s.now().UTC()
	challenge := &models.OtpChallenge{
		ID:          uuid.New(),
		BookingID:   input.BookingID,
		Purpose:     input.Purpose,
		RecipientID: input.RecipientID,
		CodeHash:    s.hasher.hash(input.BookingID, input.Purpose, code),
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.ttl),
	}

	issue := func(repo Repository) error {
		if _, err := repo.InvalidateLive(ctx, input.BookingID, input.Purpose, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "supersede completion code")
		}
		if err := repo.Create(ctx, challenge); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store completion code")
		}
		return nil
	}

	if tx != nil {
		err = issue(s.repo.WithTx(tx))
	} else {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return issue(s.repo.WithTx(tx))
		})
	}
	if err != nil {
		return nil, err
	}

	return &Issued{Challenge: challenge, Code: code, ExpiresIn: s.ttl}, nil
}

func (s *service) ValidateAndConsume(ctx context.Context, bookingID uuid.UUID, purpose enums.OtpPurpose, code string) (*models.OtpChallenge, error) {
	if !validFormat(code) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "completion code must be 6 digits")
	}
	if bookingID == uuid.Nil || !purpose.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id and purpose are required")
	}

	challenge, err := s.repo.FindLatest(ctx, bookingID, purpose)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no completion code issued")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load completion code")
	}

	now := s.now().UTC()
	if err := s.classifyUnusable(challenge, now); err != nil {
		return nil, err
	}

	if !s.hasher.matches(challenge.CodeHash, bookingID, purpose, code) {
		return nil, s.recordFailure(ctx, challenge.ID, now)
	}

	consumed, err := s.repo.ConsumeIfMatch(ctx, challenge.ID, challenge.CodeHash, now, s.maxAttempts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume completion code")
	}
	if !consumed {
		// Lost a race: re-read to report what the winner did.
		current, err := s.repo.FindByID(ctx, challenge.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload completion code")
		}
		if err := s.classifyUnusable(current, now); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeOTPAlreadyConsumed, "completion code already used")
	}

	challenge.ConsumedAt = &now
	return challenge, nil
}

func (s *service) classifyUnusable(c *models.OtpChallenge, now time.Time) error {
	switch {
	case c.ConsumedAt != nil:
		return pkgerrors.New(pkgerrors.CodeOTPAlreadyConsumed, "completion code already used")
	case c.InvalidatedAt != nil || c.AttemptCount >= s.maxAttempts:
		return pkgerrors.New(pkgerrors.CodeOTPLocked, "completion code locked after too many attempts")
	case now.After(c.ExpiresAt):
		return pkgerrors.New(pkgerrors.CodeOTPExpired, "completion code expired")
	}
	return nil
}

func (s *service) recordFailure(ctx context.Context, id uuid.UUID, now time.Time) error {
	if _, err := s.repo.RecordFailure(ctx, id, now, s.maxAttempts); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record failed attempt")
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload completion code")
	}
	if current.ConsumedAt != nil {
		return pkgerrors.New(pkgerrors.CodeOTPAlreadyConsumed, "completion code already used")
	}
	if current.InvalidatedAt != nil {
		if s.logg != nil {
			ctx = s.logg.WithBookingID(ctx, current.BookingID.String())
			s.logg.Warn(ctx, "completion code locked after repeated failures")
		}
		return pkgerrors.New(pkgerrors.CodeOTPLocked, "completion code locked after too many attempts")
	}
	remaining := s.maxAttempts - current.AttemptCount
	return pkgerrors.New(pkgerrors.CodeOTPInvalid, "completion code is incorrect").
		WithDetails(map[string]int{"attempts_remaining": remaining})
}

func (s *service) OpenChallenge(ctx context.Context, bookingID uuid.UUID) (*models.OtpChallenge, error) {
	challenge, err := s.repo.FindLiveByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open completion code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load completion code")
	}
	return challenge, nil
}

func (s *service) LatestChallenge(ctx context.Context, bookingID uuid.UUID) (*models.OtpChallenge, error) {
	challenge, err := s.repo.FindLatestByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no completion code issued")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load completion code")
	}
	return challenge, nil
}

func (s *service) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := s.repo.DeleteExpiredBefore(ctx, before.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "purge completion codes")
	}
	return deleted, nil
}
