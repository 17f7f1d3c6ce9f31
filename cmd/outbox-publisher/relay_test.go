package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/metrics"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/payloads"
	"github.com/gigbridge/gigbridge-backend/pkg/outbox/registry"
)

func TestProcessBatchRetriesOnlyTheFailedRow(t *testing.T) {
	store := &memoryStore{events: []models.OutboxEvent{
		stateChanged(t, 0),
		stateChanged(t, 0),
	}}
	pub := &scriptedPublisher{results: []publishResult{
		staticResult{err: errors.New("transient")},
		staticResult{},
	}}
	relay := newTestRelay(t, store, pub, &stubResolver{resolved: stateChangedRoute()}, nil)

	claimed, err := relay.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, []uuid.UUID{store.events[0].ID}, store.failed)
	assert.Equal(t, []uuid.UUID{store.events[1].ID}, store.published)
	assert.Empty(t, store.parked)
}

func TestProcessBatchPublishesEverythingBeforeWaiting(t *testing.T) {
	store := &memoryStore{events: []models.OutboxEvent{stateChanged(t, 0), stateChanged(t, 0), stateChanged(t, 0)}}
	pub := &scriptedPublisher{}
	relay := newTestRelay(t, store, pub, &stubResolver{resolved: stateChangedRoute()}, nil)

	var publishedBeforeFirstGet int
	pub.onGet = func() {
		if publishedBeforeFirstGet == 0 {
			publishedBeforeFirstGet = len(pub.messages)
		}
	}
	_, err := relay.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, publishedBeforeFirstGet)
	assert.Len(t, store.published, 3)
}

func TestProcessBatchSetsMessageAttributes(t *testing.T) {
	event := stateChanged(t, 0)
	store := &memoryStore{events: []models.OutboxEvent{event}}
	pub := &scriptedPublisher{}
	relay := newTestRelay(t, store, pub, &stubResolver{resolved: stateChangedRoute()}, nil)

	_, err := relay.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)
	attrs := pub.messages[0].Attributes
	assert.Equal(t, event.ID.String(), attrs["event_id"])
	assert.Equal(t, string(enums.EventBookingStateChanged), attrs["event_type"])
	assert.Equal(t, string(enums.AggregateBooking), attrs["aggregate_type"])
	assert.Equal(t, event.AggregateID.String(), attrs["aggregate_id"])
	assert.Equal(t, "1", attrs["schema_version"])
	assert.JSONEq(t, string(event.Payload), string(pub.messages[0].Data))
}

func TestProcessBatchParks(t *testing.T) {
	cases := map[string]struct {
		resolver  *stubResolver
		publisher publisher
		attempts  int
	}{
		"non-retryable resolve error": {
			resolver: &stubResolver{err: registry.NewNonRetryableError(errors.New("invalid payload"))},
		},
		"plain resolve error": {
			resolver: &stubResolver{err: errors.New("unknown event type")},
		},
		"missing publisher": {
			resolver: &stubResolver{resolved: stateChangedRoute()},
		},
		"attempts exhausted": {
			resolver:  &stubResolver{resolved: stateChangedRoute()},
			publisher: &scriptedPublisher{results: []publishResult{staticResult{err: errors.New("transient")}}},
			attempts:  4,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			event := stateChanged(t, tc.attempts)
			store := &memoryStore{events: []models.OutboxEvent{event}}
			relay := newTestRelay(t, store, tc.publisher, tc.resolver, nil)

			claimed, err := relay.processBatch(context.Background())
			require.NoError(t, err)
			assert.True(t, claimed)
			assert.Equal(t, []uuid.UUID{event.ID}, store.parked)
			assert.Empty(t, store.published)
			assert.Empty(t, store.failed)
		})
	}
}

func TestProcessBatchRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &memoryStore{events: []models.OutboxEvent{stateChanged(t, 0)}}
	relay := newTestRelay(t, store, &scriptedPublisher{}, &stubResolver{resolved: stateChangedRoute()}, nil)
	relay.metrics = metrics.NewOutboxMetrics(reg)

	_, err := relay.processBatch(context.Background())
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var published float64
	for _, mf := range mfs {
		if mf.GetName() == "gigbridge_outbox_events_total" {
			published = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.EqualValues(t, 1, published)
}

func TestProcessBatchEmpty(t *testing.T) {
	relay := newTestRelay(t, &memoryStore{}, &scriptedPublisher{}, &stubResolver{}, nil)
	claimed, err := relay.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestNewRelayDefaults(t *testing.T) {
	relay := newTestRelay(t, &memoryStore{}, &scriptedPublisher{}, &stubResolver{}, &config.OutboxConfig{})
	assert.Equal(t, defaultBatchSize, relay.batchSize)
	assert.Equal(t, defaultMaxAttempts, relay.maxAttempts)
	assert.Equal(t, time.Duration(defaultPollMs)*time.Millisecond, relay.idle)
}

func TestErrorBackoffIsCapped(t *testing.T) {
	relay := newTestRelay(t, &memoryStore{}, &scriptedPublisher{}, &stubResolver{}, nil)
	b := relay.errorBackoff()
	var last time.Duration
	for i := 0; i < 12; i++ {
		last, _ = b.Next()
	}
	assert.LessOrEqual(t, last, maxErrorBackoff+pollJitter)
	assert.GreaterOrEqual(t, last, maxErrorBackoff-pollJitter)
}

func TestRunStopsOnCancel(t *testing.T) {
	relay := newTestRelay(t, &memoryStore{}, &scriptedPublisher{}, &stubResolver{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, relay.Run(ctx), context.Canceled)
}

func newTestRelay(t *testing.T, store outboxStore, pub publisher, resolver eventResolver, override *config.OutboxConfig) *Relay {
	t.Helper()
	cfg := config.OutboxConfig{BatchSize: 5, PollIntervalMS: 100, MaxAttempts: 5}
	if override != nil {
		cfg = *override
	}
	relay, err := NewRelay(RelayParams{
		Config:     &config.Config{Outbox: cfg},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         passthroughDB{},
		PubSub:     idleTopics{},
		Repository: store,
		Registry:   resolver,
		Publishers: func(string) publisher {
			if pub == nil {
				return nil
			}
			return pub
		},
	})
	require.NoError(t, err)
	return relay
}

func stateChanged(tb testing.TB, attempts int) models.OutboxEvent {
	tb.Helper()
	payload, err := json.Marshal(outbox.Envelope{
		Version:    outbox.SchemaVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{"from":"in_progress","to":"completion_pending"}`),
	})
	require.NoError(tb, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventBookingStateChanged,
		AggregateType: enums.AggregateBooking,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
}

func stateChangedRoute() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.Descriptor{
			EventType: enums.EventBookingStateChanged,
			Topic:     "gb-domain-events",
		},
		Envelope: outbox.Envelope{Version: outbox.SchemaVersion},
		Payload:  &payloads.BookingStateChangedEvent{},
	}
}

type memoryStore struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	parked    []uuid.UUID
}

func (m *memoryStore) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return m.events, nil
}

func (m *memoryStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memoryStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memoryStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	m.parked = append(m.parked, id)
	return nil
}

type passthroughDB struct{}

func (passthroughDB) Ping(context.Context) error { return nil }

func (passthroughDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type idleTopics struct{}

func (idleTopics) Ping(context.Context) error { return nil }

func (idleTopics) Publisher(string) *gcppubsub.Publisher { return nil }

// scriptedPublisher returns results in order and succeeds once they run out.
type scriptedPublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	onGet    func()
}

func (s *scriptedPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	s.messages = append(s.messages, msg)
	var result publishResult = staticResult{}
	if len(s.results) > 0 {
		result, s.results = s.results[0], s.results[1:]
	}
	return observedResult{inner: result, onGet: s.onGet}
}

type observedResult struct {
	inner publishResult
	onGet func()
}

func (o observedResult) Get(ctx context.Context) (string, error) {
	if o.onGet != nil {
		o.onGet()
	}
	return o.inner.Get(ctx)
}

type staticResult struct {
	err error
}

func (s staticResult) Get(context.Context) (string, error) {
	return "msg-1", s.err
}

type stubResolver struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (s *stubResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	resolved := *s.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	return &resolved, nil
}
