package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gigbridge/gigbridge-backend/api/responses"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	pkgredis "github.com/gigbridge/gigbridge-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLen = 255
	maxIdempotentBody    = 64 << 10
	// inFlightTTL bounds how long a crashed request holds its key.
	inFlightTTL = 30 * time.Second

	commandTTL = 24 * time.Hour
	moneyTTL   = 7 * 24 * time.Hour
)

// idempotentActions lists the POST actions under /api/v1 that require an
// Idempotency-Key, keyed by resource and trailing path segment.
var idempotentActions = map[string]map[string]time.Duration{
	"bookings": {
		"accept":             commandTTL,
		"start":              commandTTL,
		"request-completion": commandTTL,
		"confirm-completion": commandTTL,
		"reissue-code":       commandTTL,
		"cancel":             commandTTL,
		"dispute":            commandTTL,
		"settlement":         moneyTTL,
	},
	"settlement": {
		"confirm": moneyTTL,
	},
}

// actionTTL matches /api/v1/{resource}/{id}/{action}. It reads the raw path
// because group middleware runs before chi has resolved the route pattern.
func actionTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return 0, false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 3 || parts[1] == "" {
		return 0, false
	}
	ttl, ok := idempotentActions[parts[0]][parts[2]]
	return ttl, ok
}

type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key. Keys are scoped per caller and path; reusing one with a
// different body is rejected. Concurrent duplicates get 409 while the first
// is still running. A nil store disables the middleware.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := actionTTL(r.Method, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			switch {
			case clientKey == "":
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				fail(pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long"))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			if len(body) > maxIdempotentBody {
				fail(pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(userIDFromContext(ctx)+":"+r.URL.Path, clientKey)
			fingerprint := fingerprintRequest(r.Method, r.URL.Path, body)

			prior, err := loadResponse(ctx, store, key)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency lookup"))
				return
			}
			if prior != nil {
				if prior.Fingerprint != fingerprint {
					fail(pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key reused with a different request"))
					return
				}
				replay(w, prior)
				return
			}

			lockKey := key + ":inflight"
			acquired, err := store.SetNX(ctx, lockKey, fingerprint, inFlightTTL)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency lock"))
				return
			}
			if !acquired {
				fail(pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
				return
			}
			defer func() {
				if delErr := store.Del(context.WithoutCancel(ctx), lockKey); delErr != nil && logg != nil {
					logg.Error(ctx, "release idempotency lock", delErr)
				}
			}()

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			if !replayable(capture.statusCode()) {
				return
			}
			saved, err := json.Marshal(storedResponse{
				Fingerprint: fingerprint,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err == nil {
				_, err = store.SetNX(context.WithoutCancel(ctx), key, string(saved), ttl)
			}
			if err != nil && logg != nil {
				logg.Error(ctx, "persist idempotent response", err)
			}
		})
	}
}

func loadResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var saved storedResponse
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func replay(w http.ResponseWriter, saved *storedResponse) {
	if saved.ContentType != "" {
		w.Header().Set("Content-Type", saved.ContentType)
	}
	w.Header().Set(IdempotencyReplayedHeader, "true")
	w.WriteHeader(saved.Status)
	_, _ = w.Write(saved.Body)
}

func fingerprintRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// replayable excludes outcomes a retry may legitimately change: pending
// settlements, throttling and server side failures.
func replayable(status int) bool {
	return status != http.StatusAccepted &&
		status != http.StatusTooManyRequests &&
		status < http.StatusInternalServerError
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
