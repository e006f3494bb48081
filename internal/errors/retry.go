package errors

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig is a bounded exponential backoff. The zero value calls once.
type RetryConfig struct {
	// MaxRetries counts attempts after the first.
	MaxRetries   int
	InitialDelay time.Duration
	// MaxDelay caps a single wait. Zero leaves it uncapped.
	MaxDelay time.Duration
	// Multiplier grows the wait per retry; values below 1 mean 1.
	Multiplier float64
	// Jitter draws each wait from [d/2, d).
	Jitter bool

	// ShouldRetry filters errors worth another attempt. Nil retries all.
	ShouldRetry func(error) bool
	// OnRetry runs before each wait with the 1-based retry number.
	OnRetry func(retry int, err error, wait time.Duration)
}

// DefaultRetryConfig is the index write policy used when retries are enabled.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

// Delay is the un-jittered wait before retry n (1-based).
func (c RetryConfig) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	m := math.Max(c.Multiplier, 1)
	d := float64(c.InitialDelay) * math.Pow(m, float64(n-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

func (c RetryConfig) wait(n int) time.Duration {
	d := c.Delay(n)
	if c.Jitter && d > 0 {
		d = d/2 + time.Duration(rand.Int64N(int64(d/2)+1))
	}
	return d
}

// Retry calls fn until it succeeds, the policy gives up, or ctx ends.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that return a value. Exhausting
// the retries wraps the last error; a filtered error comes back as is.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		switch {
		case err == nil:
			return v, nil
		case cfg.MaxRetries <= 0:
			return zero, err
		case cfg.ShouldRetry != nil && !cfg.ShouldRetry(err):
			return zero, err
		case n == cfg.MaxRetries:
			return zero, fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, err)
		}

		wait := cfg.wait(n + 1)
		if cfg.OnRetry != nil {
			cfg.OnRetry(n+1, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
