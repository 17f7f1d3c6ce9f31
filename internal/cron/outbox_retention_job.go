package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	outboxPruneBatch       = 500
)

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// NewOutboxRetentionJob prunes published outbox rows older than retention.
// Rows are removed in batches so a large backlog never holds one long lock.
func NewOutboxRetentionJob(logg *logger.Logger, pruner outboxPruner, retention time.Duration) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if pruner == nil {
		return nil, fmt.Errorf("outbox pruner required")
	}
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{
		logg:      logg,
		pruner:    pruner,
		retention: retention,
		batch:     outboxPruneBatch,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	pruner    outboxPruner
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Every() time.Duration { return 24 * time.Hour }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.pruner.DeletePublishedBefore(ctx, cutoff, j.batch)
		if err != nil {
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		total += n
		if n < int64(j.batch) {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "rows_deleted": total})
	j.logg.Info(logCtx, "published outbox rows pruned")
	return nil
}
