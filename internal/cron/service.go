package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/metrics"
)

const (
	defaultInterval = time.Minute
	// Cycles must finish inside the lock lease or a second replica could
	// start the same jobs.
	defaultCycleBudget = defaultLockTTL - time.Minute
)

// Scheduled is implemented by jobs that should run less often than every cycle.
type Scheduled interface {
	Every() time.Duration
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// CycleBudget caps one cycle; keep it below the lock TTL.
	CycleBudget time.Duration
}

// Service runs the registered jobs once per interval on whichever replica
// holds the lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	budget   time.Duration
	now      func() time.Time
	lastRun  map[string]time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, errors.New("cron: logger required")
	}
	if p.Lock == nil {
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:     p.Logger,
		registry: p.Registry,
		lock:     p.Lock,
		metrics:  p.Metrics,
		interval: p.Interval,
		budget:   p.CycleBudget,
		now:      time.Now,
		lastRun:  map[string]time.Time{},
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.budget <= 0 {
		s.budget = defaultCycleBudget
	}
	return s, nil
}

// Run executes a cycle immediately and then once per interval until ctx ends.
// Failed cycles are logged and never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle finished with errors", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) (err error) {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !held {
		s.logg.Debug(ctx, "cron lock held elsewhere; skipping cycle")
		return nil
	}
	defer func() {
		// Release with a fresh context so a cancelled run still frees the lease.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if relErr := s.lock.Release(releaseCtx); relErr != nil {
			s.logg.Error(ctx, "release cron lock", relErr)
		}
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	started := s.now()
	for _, job := range s.registry.Jobs() {
		if cycleCtx.Err() != nil {
			err = multierr.Append(err, fmt.Errorf("%s: skipped: %w", job.Name(), cycleCtx.Err()))
			continue
		}
		if !s.due(job, started) {
			continue
		}
		if jobErr := s.runJob(cycleCtx, job); jobErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", job.Name(), jobErr))
		}
		s.lastRun[job.Name()] = started
	}
	return err
}

// due reports whether a Scheduled job's cadence has elapsed. lastRun lives in
// memory, so a restarted worker runs every job once.
func (s *Service) due(job Job, now time.Time) bool {
	scheduled, ok := job.(Scheduled)
	if !ok {
		return true
	}
	last, ran := s.lastRun[job.Name()]
	return !ran || now.Sub(last) >= scheduled.Every()
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.ObserveRun(job.Name(), elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Debug(jobCtx, "job finished")
	return nil
}
