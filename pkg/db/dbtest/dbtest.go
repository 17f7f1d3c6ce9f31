// Package dbtest opens isolated SQLite databases carrying the same tables as the
// Postgres migrations, for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var counter atomic.Int64

// Schema mirrors pkg/migrate/migrations using SQLite types. Partial unique
// indexes are kept so uniqueness guarantees behave as in production.
const Schema = `
CREATE TABLE IF NOT EXISTS bookings (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  worker_id TEXT NOT NULL,
  service_category TEXT NOT NULL,
  scheduled_at DATETIME NOT NULL,
  status TEXT NOT NULL,
  amount_due_minor INTEGER NOT NULL,
  currency TEXT NOT NULL,
  payment_order_ref TEXT,
  completed_at DATETIME,
  settled_at DATETIME,
  cancelled_at DATETIME,
  dispute_reason TEXT,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS otp_challenges (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL,
  purpose TEXT NOT NULL,
  recipient_id TEXT NOT NULL,
  code_hash TEXT NOT NULL,
  issued_at DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  consumed_at DATETIME,
  invalidated_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_otp_challenges_live
  ON otp_challenges (booking_id, purpose)
  WHERE consumed_at IS NULL AND invalidated_at IS NULL;
CREATE TABLE IF NOT EXISTS payment_orders (
  id TEXT PRIMARY KEY,
  booking_id TEXT NOT NULL,
  amount_minor INTEGER NOT NULL,
  currency TEXT NOT NULL,
  receipt TEXT NOT NULL,
  status TEXT NOT NULL,
  gateway_payment_id TEXT,
  gateway_signature_payload TEXT,
  failure_reason TEXT,
  created_at DATETIME,
  last_polled_at DATETIME,
  resolved_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_orders_open
  ON payment_orders (booking_id) WHERE status = 'created';
CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_orders_paid
  ON payment_orders (booking_id) WHERE status = 'paid';
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  wallet_owner_id TEXT NOT NULL,
  booking_id TEXT NOT NULL,
  order_idempotency_key TEXT NOT NULL,
  direction TEXT NOT NULL,
  amount_minor INTEGER NOT NULL,
  running_balance_snapshot INTEGER NOT NULL,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_wallet_transactions_order_key
  ON wallet_transactions (order_idempotency_key);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
`

// Open returns a fresh in-memory database private to t. The pool is limited to
// one connection so concurrent tests serialize on SQLite instead of failing
// with "database table is locked".
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, counter.Add(1))

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
