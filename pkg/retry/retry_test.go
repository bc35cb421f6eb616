package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestDoSucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Config{}, NewFixedDelay(time.Millisecond, 3), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Config{}, NewFixedDelay(time.Millisecond, 5), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errBoom
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	failed := 0
	cfg := Config{OnAttemptFailed: func(attempt int, err error) { failed++ }}

	_, err := Do(context.Background(), cfg, NewExponentialBackoff(10*time.Millisecond, 3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, failed)
}

func TestDoAbandonsOnContextCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, Config{}, NewFixedDelay(5*time.Second, 10), func(ctx context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFixedDelayStopsAfterMaxAttempts(t *testing.T) {
	s := NewFixedDelay(time.Millisecond, 2)

	_, ok := s.NextDelay(1)
	assert.True(t, ok)
	_, ok = s.NextDelay(2)
	assert.False(t, ok)
}
