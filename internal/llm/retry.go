// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// BackoffBase controls the base duration for exponential backoff between
// attempts. Tests override this to avoid real sleeps.
var BackoffBase = time.Second

// RetryPolicy bounds CallWithRetry.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// Timeout bounds each attempt; zero means no per-attempt timeout.
	Timeout time.Duration
}

// CallWithRetry runs fn up to MaxRetries+1 times with exponential backoff.
// Each attempt gets its own timeout, and a timed-out attempt is retried
// like any other failure. Cancellation of ctx stops retrying at once.
func CallWithRetry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * BackoffBase
			slog.Debug("retrying model call", "attempt", attempt+1, "backoff", backoff, "err", lastErr)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		v, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}
	return zero, fmt.Errorf("after %d retries: %w", p.MaxRetries, lastErr)
}
