package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

const defaultOTPRetention = 30 * 24 * time.Hour

type otpPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// NewOTPPurgeJob deletes completion codes that expired more than retention ago.
func NewOTPPurgeJob(logg *logger.Logger, purger otpPurger, retention time.Duration) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if purger == nil {
		return nil, fmt.Errorf("otp purger required")
	}
	if retention <= 0 {
		retention = defaultOTPRetention
	}
	return &otpPurgeJob{logg: logg, purger: purger, retention: retention, now: time.Now}, nil
}

type otpPurgeJob struct {
	logg      *logger.Logger
	purger    otpPurger
	retention time.Duration
	now       func() time.Time
}

func (j *otpPurgeJob) Name() string { return "otp-purge" }

func (j *otpPurgeJob) Every() time.Duration { return 24 * time.Hour }

func (j *otpPurgeJob) Run(ctx context.Context) error {
	before := j.now().UTC().Add(-j.retention)
	deleted, err := j.purger.PurgeExpired(ctx, before)
	if err != nil {
		return fmt.Errorf("otp purge: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"before": before, "rows_deleted": deleted})
	j.logg.Info(logCtx, "expired completion codes purged")
	return nil
}
