package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out), buf.String())
	return out
}

func TestSettlementFieldsTravelOnContext(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	ctx := logg.WithSettlement(context.Background(), "booking-1", "order_abc")
	ctx = logg.WithRequestID(ctx, "req-1")
	logg.Info(ctx, "settled")

	line := lastLine(t, &buf)
	assert.Equal(t, "api", line[FieldService])
	assert.Equal(t, "booking-1", line[FieldBookingID])
	assert.Equal(t, "order_abc", line[FieldOrderID])
	assert.Equal(t, "order_abc", line[FieldIdempotencyKey])
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.Equal(t, "settled", line["message"])
}

func TestDerivedContextDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	parent := logg.WithUserID(context.Background(), "u1")
	_ = logg.WithFields(parent, map[string]any{"job": "reconcile"})
	logg.Info(parent, "parent")

	line := lastLine(t, &buf)
	assert.Equal(t, "u1", line[FieldUserID])
	assert.NotContains(t, line, "job")
}

func TestErrorCarriesDomainCode(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	err := fmt.Errorf("poll: %w", pkgerrors.New(pkgerrors.CodeDependency, "gateway down"))
	logg.Error(context.Background(), "poll failed", err)

	line := lastLine(t, &buf)
	assert.Equal(t, string(pkgerrors.CodeDependency), line[FieldErrorCode])
	assert.Equal(t, true, line[FieldRetryable])
	assert.Contains(t, line, FieldStack)

	buf.Reset()
	logg.Error(context.Background(), "plain", errors.New("bad"))
	line = lastLine(t, &buf)
	assert.Equal(t, "bad", line["error"])
	assert.NotContains(t, line, FieldErrorCode)
}

func TestLevelAndWarnStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Level: zerolog.WarnLevel, WarnStack: true, Output: &buf})

	logg.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	logg.Warn(context.Background(), "shown")
	assert.Contains(t, lastLine(t, &buf), FieldStack)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}
