package bookings

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

const conflictBackoffBase = 5 * time.Millisecond

// RetryOnConflict re-runs fn while it fails with CONCURRENT_MODIFICATION, up to
// attempts retries. fn must re-read whatever state it writes.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 0 {
		attempts = 0
	}
	backoff := retry.WithMaxRetries(uint64(attempts), retry.NewExponential(conflictBackoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if pkgerrors.IsCode(err, pkgerrors.CodeConcurrentModification) {
			return retry.RetryableError(err)
		}
		return err
	})
}
