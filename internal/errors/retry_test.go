package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	// Given: a function that fails twice
	calls := 0
	fn := func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	// When: retrying with three retries
	err := Retry(context.Background(), fastRetry(3), fn)

	// Then: it succeeds on the third call
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	sentinel := errors.New("still down")

	err := Retry(context.Background(), fastRetry(2), func() error {
		calls++
		return sentinel
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestRetry_ZeroRetriesCallsOnce(t *testing.T) {
	calls := 0
	sentinel := errors.New("fail")

	err := Retry(context.Background(), fastRetry(0), func() error {
		calls++
		return sentinel
	})

	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ShouldRetryStopsOnPermanentError(t *testing.T) {
	// Given: a config that only retries retryable engine errors
	cfg := fastRetry(5)
	cfg.ShouldRetry = IsRetryable
	calls := 0

	// When: the function returns a permanent error
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return New(ErrCodeNoCredential, "no credential", nil)
	})

	// Then: no retries happen
	assert.True(t, HasCode(err, ErrCodeNoCredential))
	assert.Equal(t, 1, calls)
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetry(3), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	v, err := RetryWithResult(context.Background(), fastRetry(2), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("first")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 3}

	tests := []struct {
		n    int
		want time.Duration
	}{
		{n: 0, want: 0},
		{n: 1, want: 100 * time.Millisecond},
		{n: 2, want: 300 * time.Millisecond},
		{n: 3, want: 900 * time.Millisecond},
		{n: 4, want: time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Delay(tt.n), "retry %d", tt.n)
	}

	flat := RetryConfig{InitialDelay: time.Millisecond}
	assert.Equal(t, time.Millisecond, flat.Delay(5))
}

func TestRetry_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 1, Jitter: true}

	for i := 0; i < 50; i++ {
		d := cfg.wait(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestRetry_OnRetryReportsEachWait(t *testing.T) {
	// Given a policy with two retries and an observer
	cfg := fastRetry(2)
	var seen []int
	cfg.OnRetry = func(retry int, err error, wait time.Duration) {
		seen = append(seen, retry)
		assert.EqualError(t, err, "down")
		assert.Positive(t, wait)
	}

	// When every attempt fails
	_ = Retry(context.Background(), cfg, func() error { return errors.New("down") })

	// Then the observer saw both retries but not the final failure
	assert.Equal(t, []int{1, 2}, seen)
}
