package transport

import (
	"context"
	"time"
)

// Retry defaults: three retries waiting 2s, 4s and 8s
const (
	MaxRetries        = 3
	InitialBackoff    = 2 * time.Second
	MaxBackoff        = 30 * time.Second
	BackoffMultiplier = 2.0
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Upper bound on any single delay
	Multiplier float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns the production retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  InitialBackoff,
		MaxDelay:   MaxBackoff,
		Multiplier: BackoffMultiplier,
	}
}

// Delay returns the wait before retry number attempt (1-based)
func (c RetryConfig) Delay(attempt int) time.Duration {
	multiplier := c.Multiplier
	if multiplier <= 0 {
		multiplier = BackoffMultiplier
	}
	d := c.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * multiplier)
		if c.MaxDelay > 0 && d > c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// retryWithBackoff runs fn until it succeeds, returns a non-retryable error,
// or MaxRetries retries are exhausted. onRetry is called before each wait.
// Retrying stops as soon as ctx is done.
func retryWithBackoff[T any](
	ctx context.Context,
	config RetryConfig,
	retryable func(error) bool,
	onRetry func(attempt int, delay time.Duration, err error),
	fn func(attempt int) (T, error),
) (T, int, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, err := fn(attempt + 1)
		if err == nil {
			return result, attempt + 1, nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return zero, attempt + 1, ctx.Err()
		}
		if !retryable(err) || attempt == config.MaxRetries {
			return zero, attempt + 1, lastErr
		}

		delay := config.Delay(attempt + 1)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt + 1, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, config.MaxRetries + 1, lastErr
}
