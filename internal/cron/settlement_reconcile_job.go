package cron

import (
	"context"
	"fmt"

	"github.com/gigbridge/gigbridge-backend/internal/settlement"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

type staleReconciler interface {
	ReconcileStale(ctx context.Context) (*settlement.ReconcileSummary, error)
}

// NewSettlementReconcileJob polls the gateway for payment orders nobody has
// checked recently. Paid orders go through the normal settle path.
func NewSettlementReconcileJob(logg *logger.Logger, reconciler staleReconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("settlement reconciler required")
	}
	return &settlementReconcileJob{logg: logg, reconciler: reconciler}, nil
}

type settlementReconcileJob struct {
	logg       *logger.Logger
	reconciler staleReconciler
}

func (j *settlementReconcileJob) Name() string { return "settlement-reconcile" }

func (j *settlementReconcileJob) Run(ctx context.Context) error {
	summary, err := j.reconciler.ReconcileStale(ctx)
	if err != nil {
		return fmt.Errorf("settlement reconcile: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": summary.Scanned,
		"settled": summary.Settled,
		"failed":  summary.Failed,
		"errors":  summary.Errors,
	})
	if summary.Errors > 0 {
		j.logg.Warn(logCtx, "settlement reconcile finished with errors")
		return nil
	}
	j.logg.Info(logCtx, "settlement reconcile complete")
	return nil
}
