package keydb

import (
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff up to maxRetries retries. Only errors for
// which ShouldRetry is true are retried. If retries are exhausted, gaveUpTask is invoked
// (when not nil) and the final error is returned.
//
// The adapter itself never retries; Retry is for process startup, e.g. waiting for the
// store to accept connections.
func Retry(ctx context.Context, maxRetries uint64, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(500 * time.Millisecond)
	err := retry.Do(ctx, retry.WithMaxRetries(maxRetries, b), func(ctx context.Context) error {
		err := task(ctx)
		if ShouldRetry(err) {
			log.Debug("retrying", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether the error is retryable (non-nil and not a known permanent failure).
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellations/timeouts are permanent from the caller's POV.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case IsErrorCode(err, MalformedHeightData),
		IsErrorCode(err, ReservedKeyViolation),
		IsErrorCode(err, BatchConsumed):
		return false
	}
	return true
}
