// Package idempotency de-duplicates at-least-once deliveries, such as gateway
// webhooks, by claiming each event id in Redis for a bounded window.
package idempotency

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/gigbridge/gigbridge-backend/pkg/redis"
)

const maxRawEventID = 96

var (
	errConsumerRequired = errors.New("consumer name is required")
	errEventIDRequired  = errors.New("event id is required")
)

// Manager claims event ids per consumer. A claim is a SETNX on
// gb:idempotency:evt:<consumer>:<event> holding the claim time.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager keeps claims for ttl; zero means claims never expire.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim reports true when the caller is first to see eventID for consumer and
// must process it; false means a previous delivery already claimed it.
func (m *Manager) Claim(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339Nano), m.ttl)
}

// ClaimedAt returns when eventID was claimed, or the zero time if it was not.
func (m *Manager) ClaimedAt(ctx context.Context, consumer, eventID string) (time.Time, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return time.Time{}, err
	}
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) || (err == nil && raw == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, raw)
}

// Release drops a claim so a delivery that failed mid-way can be retried.
func (m *Manager) Release(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// key hashes event ids that are long or carry separators so keys stay bounded
// and unambiguous.
func (m *Manager) key(consumer, eventID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return "", errConsumerRequired
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", errEventIDRequired
	}
	if len(eventID) > maxRawEventID || strings.ContainsAny(eventID, ": \t\n") {
		sum := blake2b.Sum256([]byte(eventID))
		eventID = "h" + hex.EncodeToString(sum[:16])
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID), nil
}
