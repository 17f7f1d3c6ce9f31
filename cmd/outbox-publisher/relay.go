package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/metrics"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxErrorBackoff    = 10 * time.Second
	pollJitter         = 250 * time.Millisecond
)

// Reasons a row is parked instead of retried.
const (
	parkedUnroutable  = "non_retryable"
	parkedMaxAttempts = "max_attempts"
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// RelayParams wires the relay loop. Publishers defaults to the Pub/Sub
// client's shared per-topic publishers.
type RelayParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         txRunner
	PubSub     topicSource
	Repository outboxStore
	Registry   eventResolver
	Metrics    *metrics.OutboxMetrics
	Publishers func(topic string) publisher
}

// Relay moves booking, payment and wallet events from the outbox table to
// Pub/Sub. Each batch is claimed under a row lock, published concurrently and
// settled row by row in the claiming transaction, so a crash before commit
// republishes rather than loses events.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      topicSource
	store       outboxStore
	resolver    eventResolver
	metrics     *metrics.OutboxMetrics
	publishers  func(topic string) publisher
	batchSize   int
	maxAttempts int
	idle        time.Duration
	idleBackoff retry.Backoff
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	publishers := p.Publishers
	if publishers == nil {
		source := p.PubSub
		publishers = func(topic string) publisher {
			if pub := source.Publisher(topic); pub != nil {
				return gcpPublisher{pub}
			}
			return nil
		}
	}

	cfg := p.Config.Outbox
	return &Relay{
		logg:        p.Logger,
		db:          p.DB,
		pubsub:      p.PubSub,
		store:       p.Repository,
		resolver:    p.Registry,
		metrics:     p.Metrics,
		publishers:  publishers,
		batchSize:   orDefault(cfg.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(cfg.MaxAttempts, defaultMaxAttempts),
		idle:        time.Duration(orDefault(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Run relays until ctx is cancelled. An empty table is polled every idle
// interval; a failing batch backs off exponentially up to maxErrorBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub not ready: %w", err)
	}

	r.idleBackoff = retry.WithJitter(pollJitter, retry.NewConstant(r.idle))
	onError := r.errorBackoff()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		busy, err := r.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox batch failed", err)
			wait, _ = onError.Next()
		case busy:
			onError = r.errorBackoff()
			continue
		default:
			onError = r.errorBackoff()
			wait, _ = r.idleBackoff.Next()
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Relay) errorBackoff() retry.Backoff {
	return retry.WithJitter(pollJitter, retry.WithCappedDuration(maxErrorBackoff, retry.NewExponential(r.idle)))
}

// inflight is one row whose publish has been handed to the client.
type inflight struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

// processBatch reports whether any row was claimed.
func (r *Relay) processBatch(ctx context.Context) (bool, error) {
	start := time.Now()
	claimed := false
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		claimed = len(events) > 0

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		// Hand every row to the client first so Pub/Sub can batch them, then
		// wait on each result in claim order.
		pending := make([]inflight, 0, len(events))
		for _, event := range events {
			pending = append(pending, r.send(publishCtx, event))
		}
		for _, f := range pending {
			if f.err == nil {
				_, f.err = f.result.Get(publishCtx)
			}
			if err := r.settle(ctx, tx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if claimed {
		r.metrics.ObserveBatch(time.Since(start))
	}
	return claimed, err
}

func (r *Relay) send(ctx context.Context, event models.OutboxEvent) inflight {
	f := inflight{event: event}
	resolved, err := r.resolver.Resolve(event)
	if err != nil {
		if !registry.IsNonRetryable(err) {
			err = registry.NewNonRetryableError(err)
		}
		f.err = err
		return f
	}
	f.resolved = resolved
	topic := f.resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		f.err = registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
		return f
	}
	f.result = pub.Publish(ctx, message(event, f.resolved))
	if f.result == nil {
		f.err = registry.NewNonRetryableError(fmt.Errorf("publisher for topic %q returned no result", topic))
	}
	return f
}

func message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"schema_version": strconv.Itoa(resolved.Envelope.Version),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// settle records the outcome of one row inside the claiming transaction.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, f inflight) error {
	event := f.event
	logCtx := r.logg.WithFields(ctx, rowFields(f))
	eventType := string(event.EventType)

	switch {
	case f.err == nil:
		if err := r.store.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", event.ID, err)
		}
		r.metrics.ObserveEvent(eventType, metrics.OutboxPublished)
		r.logg.Info(logCtx, "outbox event published")
		return nil

	case registry.IsNonRetryable(f.err):
		return r.park(logCtx, tx, f, parkedUnroutable, f.err)

	case event.AttemptCount+1 >= r.maxAttempts:
		return r.park(logCtx, tx, f, parkedMaxAttempts, fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, f.err))
	}

	if err := r.store.MarkFailedTx(tx, event.ID, f.err); err != nil {
		return fmt.Errorf("mark %s failed: %w", event.ID, err)
	}
	r.metrics.ObserveEvent(eventType, metrics.OutboxRetried)
	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"attempt_count": event.AttemptCount + 1,
		"error":         f.err.Error(),
	}), "outbox publish failed; will retry")
	return nil
}

// park retires a row for good. It keeps payload and last_error for replay.
func (r *Relay) park(ctx context.Context, tx *gorm.DB, f inflight, reason string, cause error) error {
	if err := r.store.MarkTerminalTx(tx, f.event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("park %s: %w", f.event.ID, err)
	}
	r.metrics.ObserveEvent(string(f.event.EventType), metrics.OutboxParked)
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"terminal_reason": reason,
		"error":           cause.Error(),
	}), "outbox event parked")
	return nil
}

func rowFields(f inflight) map[string]any {
	fields := map[string]any{
		"outbox_id":      f.event.ID.String(),
		"event_type":     f.event.EventType,
		"aggregate_type": f.event.AggregateType,
		"aggregate_id":   f.event.AggregateID.String(),
	}
	if f.resolved != nil {
		fields["topic"] = f.resolved.Descriptor.Topic
		fields["event_id"] = f.resolved.Envelope.EventID
	}
	if f.event.LastError != nil {
		fields["previous_error"] = *f.event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.pub.Publish(ctx, msg)
}
