// Package retry implements a pluggable backoff executor over
// arbitrary operations. The attempt/sleep/retry
// shape is grounded on a SendMessage retry loop
// (arnnvv-bluetalk/transport.go), which retries up to maxRetries with
// a fixed sleep between attempts; this generalizes that loop to any
// operation and any Strategy, and adds an exponential strategy atop
// github.com/cenkalti/backoff/v4.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Strategy decides how long to wait before the next attempt.
// NextDelay returns false to signal no further retries.
type Strategy interface {
	NextDelay(attempt int) (time.Duration, bool)
}

// FixedDelay makes at most MaxAttempts attempts in total, waiting Delay
// between each (transport.go uses exactly this shape: a fixed
// 250ms sleep, up to maxRetries=5).
type FixedDelay struct {
	Delay       time.Duration
	MaxAttempts int
}

// NewFixedDelay builds a FixedDelay strategy.
func NewFixedDelay(delay time.Duration, maxAttempts int) *FixedDelay {
	return &FixedDelay{Delay: delay, MaxAttempts: maxAttempts}
}

// NextDelay implements Strategy.
func (f *FixedDelay) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= f.MaxAttempts {
		return 0, false
	}
	return f.Delay, true
}

// ExponentialBackoff wraps backoff.ExponentialBackOff, capping the
// total number of attempts (a `max` parameter) independent
// of the library's own elapsed-time cap, which this executor disables
// in favor of an explicit attempt count.
type ExponentialBackoff struct {
	MaxAttempts int
	backoff     backoff.BackOff
}

// NewExponentialBackoff builds a strategy whose delays grow
// geometrically from base, never exceeding the library's default
// multiplier and randomization, capped at maxAttempts tries.
func NewExponentialBackoff(base time.Duration, maxAttempts int) *ExponentialBackoff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxElapsedTime = 0
	return &ExponentialBackoff{MaxAttempts: maxAttempts, backoff: b}
}

// NextDelay implements Strategy.
func (e *ExponentialBackoff) NextDelay(attempt int) (time.Duration, bool) {
	if attempt >= e.MaxAttempts {
		return 0, false
	}
	return e.backoff.NextBackOff(), true
}
