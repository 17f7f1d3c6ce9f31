package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/internal/settlement"
	"github.com/gigbridge/gigbridge-backend/internal/wallet"
	"github.com/gigbridge/gigbridge-backend/pkg/db/models"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

type stubSettlement struct {
	settlement.Service
	gotPolicy settlement.Policy
	await     func() (*settlement.StatusResult, error)
	polled    []string
}

func (s *stubSettlement) AwaitSettlement(_ context.Context, _ string, policy settlement.Policy) (*settlement.StatusResult, error) {
	s.gotPolicy = policy
	return s.await()
}

func (s *stubSettlement) PollStatus(_ context.Context, orderID string) (*settlement.StatusResult, error) {
	s.polled = append(s.polled, orderID)
	return &settlement.StatusResult{OrderID: orderID, OrderStatus: enums.PaymentOrderStatusPaid, Settled: true}, nil
}

func (s *stubSettlement) ReconcileStale(context.Context) (*settlement.ReconcileSummary, error) {
	return &settlement.ReconcileSummary{Scanned: 3, Settled: 1}, nil
}

type stubWallet struct {
	wallet.Service
	balance int64
	report  *wallet.SnapshotReport
	limit   int
}

func (s *stubWallet) Balance(context.Context, uuid.UUID) (int64, error) { return s.balance, nil }

func (s *stubWallet) VerifySnapshots(context.Context, uuid.UUID) (*wallet.SnapshotReport, error) {
	return s.report, nil
}

func (s *stubWallet) History(_ context.Context, _ uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	s.limit = limit
	return []models.WalletTransaction{}, nil
}

type stubBookings struct {
	bookings.Service
	input bookings.CreateInput
}

func (s *stubBookings) Create(_ context.Context, input bookings.CreateInput) (*models.Booking, error) {
	s.input = input
	return &models.Booking{ID: uuid.New()}, nil
}

func runCLI(t *testing.T, rt *Runtime, args ...string) (string, error) {
	t.Helper()
	released := false
	load := func(context.Context) (*Runtime, func(), error) {
		return rt, func() { released = true }, nil
	}
	openSQL := func(context.Context) (*sql.DB, func(), error) {
		return nil, nil, errors.New("no database in tests")
	}
	root := NewRootCommand(load, openSQL)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if rt != nil && err == nil {
		assert.True(t, released, "runtime should be released")
	}
	return out.String(), err
}

func defaultPolicy() settlement.Policy {
	return settlement.Policy{Interval: 3 * time.Second, MaxAttempts: 100}
}

func TestAwaitUsesConfiguredPolicyAndOverrides(t *testing.T) {
	svc := &stubSettlement{await: func() (*settlement.StatusResult, error) {
		return &settlement.StatusResult{OrderID: "order_1", OrderStatus: enums.PaymentOrderStatusPaid, Settled: true}, nil
	}}
	rt := &Runtime{Settlement: svc, Policy: defaultPolicy()}

	out, err := runCLI(t, rt, "await", "order_1")
	require.NoError(t, err)
	assert.Equal(t, defaultPolicy(), svc.gotPolicy)
	assert.Contains(t, out, `"settled": true`)

	_, err = runCLI(t, rt, "await", "order_1", "--interval", "10ms", "--attempts", "2")
	require.NoError(t, err)
	assert.Equal(t, settlement.Policy{Interval: 10 * time.Millisecond, MaxAttempts: 2}, svc.gotPolicy)
}

func TestAwaitTimeoutPrintsLastStateAndFails(t *testing.T) {
	svc := &stubSettlement{await: func() (*settlement.StatusResult, error) {
		return &settlement.StatusResult{OrderID: "order_2", OrderStatus: enums.PaymentOrderStatusCreated},
			pkgerrors.New(pkgerrors.CodeReconciliationTimeout, "still pending")
	}}
	out, err := runCLI(t, &Runtime{Settlement: svc, Policy: defaultPolicy()}, "await", "order_2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still")
	assert.Contains(t, out, `"order_id": "order_2"`)
}

func TestAwaitRequiresOrderID(t *testing.T) {
	_, err := runCLI(t, &Runtime{}, "await")
	require.Error(t, err)
}

func TestPollAndReconcile(t *testing.T) {
	svc := &stubSettlement{}
	rt := &Runtime{Settlement: svc}

	out, err := runCLI(t, rt, "poll", "order_3")
	require.NoError(t, err)
	assert.Equal(t, []string{"order_3"}, svc.polled)
	assert.Contains(t, out, `"order_status": "paid"`)

	out, err = runCLI(t, rt, "reconcile")
	require.NoError(t, err)
	var summary settlement.ReconcileSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 3, summary.Scanned)
}

func TestBalanceReportsDrift(t *testing.T) {
	owner := uuid.New()
	clean := &stubWallet{balance: 150000, report: &wallet.SnapshotReport{OwnerID: owner, Transactions: 2, Balance: 150000}}
	out, err := runCLI(t, &Runtime{Wallet: clean}, "balance", owner.String())
	require.NoError(t, err)
	assert.Contains(t, out, `"balance": 150000`)

	drifted := &stubWallet{balance: 10, report: &wallet.SnapshotReport{
		OwnerID: owner,
		Drift:   []wallet.SnapshotDrift{{}},
	}}
	_, err = runCLI(t, &Runtime{Wallet: drifted}, "balance", owner.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drifted")
}

func TestBalanceRejectsBadOwner(t *testing.T) {
	_, err := runCLI(t, &Runtime{Wallet: &stubWallet{}}, "balance", "not-a-uuid")
	require.Error(t, err)
}

func TestHistoryPassesLimit(t *testing.T) {
	svc := &stubWallet{}
	_, err := runCLI(t, &Runtime{Wallet: svc}, "history", uuid.NewString(), "--limit", "20")
	require.NoError(t, err)
	assert.Equal(t, 20, svc.limit)
}

func TestSeedConvertsMajorUnits(t *testing.T) {
	svc := &stubBookings{}
	client, worker := uuid.New(), uuid.New()
	_, err := runCLI(t, &Runtime{Bookings: svc}, "seed",
		"--client", client.String(),
		"--worker", worker.String(),
		"--amount", "1499.50",
	)
	require.NoError(t, err)
	assert.Equal(t, client, svc.input.ClientID)
	assert.Equal(t, worker, svc.input.WorkerID)
	assert.Equal(t, int64(149950), svc.input.AmountDueMinor)
	assert.Equal(t, enums.CurrencyINR, svc.input.Currency)
}

func TestSeedRequiresParties(t *testing.T) {
	_, err := runCLI(t, &Runtime{Bookings: &stubBookings{}}, "seed", "--amount", "10")
	require.Error(t, err)
}

func TestMigrateCreateAndValidateNeedNoDatabase(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, nil, "migrate", "create", "add wallet index", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "created migration:")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, filepath.Base(entries[0].Name()), "add_wallet_index")
}

func TestMigrateUpSurfacesOpenError(t *testing.T) {
	_, err := runCLI(t, nil, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open database")
}

func TestMigrateValidateDefaultsToEmbeddedSet(t *testing.T) {
	out, err := runCLI(t, nil, "migrate", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "migration validation passed")
}
