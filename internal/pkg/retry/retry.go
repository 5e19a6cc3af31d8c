// Package retry runs an operation with exponential backoff between attempts.
package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BackoffFactor multiplies the wait after each retry. Defaults to 2.
	BackoffFactor float64

	// Jitter adds up to one extra backoff, chosen at random, to each wait.
	Jitter bool
}

// IsRetryableFunc decides whether err warrants another attempt. A nil
// IsRetryableFunc retries every error.
type IsRetryableFunc func(error) bool

// OnRetryFunc is called before each retry; attempt is 1-indexed.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

func (c Config) normalized() Config {
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 2.0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 10 * time.Millisecond
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}

// backoff returns the base wait before retry n (1-indexed), capped at MaxBackoff.
func (c Config) backoff(n int) time.Duration {
	wait := float64(c.InitialBackoff)
	for i := 1; i < n; i++ {
		wait *= c.BackoffFactor
		if wait >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}
	return time.Duration(wait)
}

func (c Config) wait(n int) time.Duration {
	base := c.backoff(n)
	if c.Jitter && base > 0 {
		return base + time.Duration(rand.Int64N(int64(base)))
	}
	return base
}

// Do calls fn until it succeeds, returns an error isRetryable rejects, runs
// out of retries, or ctx is done.
func Do[T any](ctx context.Context, cfg Config, isRetryable IsRetryableFunc, onRetry OnRetryFunc, fn func() (T, error)) (T, error) {
	var zero T
	cfg = cfg.normalized()

	result, err := fn()
	for retry := 1; err != nil; retry++ {
		if isRetryable != nil && !isRetryable(err) {
			return zero, err
		}
		if retry > cfg.MaxRetries {
			return zero, fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries, err)
		}

		wait := cfg.wait(retry)
		if onRetry != nil {
			onRetry(retry, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, fmt.Errorf("context cancelled while retrying: %w", err)
		}

		result, err = fn()
	}
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
