package retry

import (
	"context"
	"time"
)

// Config bundles callbacks and bookkeeping around a single retry
// run.
type Config struct {
	// OnAttemptFailed is invoked after every failed attempt, with the
	// 1-based attempt number and the error that attempt returned.
	OnAttemptFailed func(attempt int, err error)
}

// Do runs op, retrying per strategy until it succeeds, the strategy
// is exhausted, or ctx is canceled. On success it short-circuits and
// returns the value. Dropping the context mid-sleep abandons the
// operation with no further side effects — the op is simply never
// called again.
func Do[T any](ctx context.Context, cfg Config, strategy Strategy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempt := 0

	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		attempt++

		if cfg.OnAttemptFailed != nil {
			cfg.OnAttemptFailed(attempt, err)
		}

		delay, ok := strategy.NextDelay(attempt)
		if !ok {
			return zero, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
