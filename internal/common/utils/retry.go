package utils

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

// RetryConfig holds configuration for retry operations with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial attempt)
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries (caps exponential growth)
	MaxDelay time.Duration

	// BackoffFactor is the multiplier for exponential backoff (e.g., 2.0 doubles delay)
	BackoffFactor float64

	// JitterFactor adds randomness to delays (0.0-1.0, where 0.1 = 10% jitter)
	JitterFactor float64

	// FullJitter, when set, replaces each computed delay with a uniformly
	// random duration in [0, delay]. Overrides JitterFactor.
	FullJitter bool

	// RetryableErrors determines which errors should trigger a retry.
	// If nil, all errors are considered retryable.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns a sensible default retry configuration:
// 3 attempts, 1s initial delay, exponential backoff capped at 30s, 10% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
		RetryableErrors: func(err error) bool {
			return true
		},
	}
}

// RetryWithBackoff executes a function with exponential backoff retry strategy.
//
// Attempts to execute the provided function up to MaxAttempts times,
// with exponentially increasing delays between attempts. Supports context
// cancellation and configurable error filtering. Non-retryable errors are
// returned unchanged immediately.
func RetryWithBackoff(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err

			if config.RetryableErrors != nil && !config.RetryableErrors(err) {
				return err
			}

			if attempt == config.MaxAttempts {
				break
			}
		}

		wait := delay
		if config.FullJitter {
			wait = time.Duration(randomInt64n(int64(delay) + 1))
		} else if config.JitterFactor > 0 {
			jitter := time.Duration(float64(delay) * config.JitterFactor)
			wait = delay + time.Duration(randomInt64n(int64(jitter)+1))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(wait):
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Retry executes a function with simple fixed-delay retry logic.
func Retry(attempts int, delay time.Duration, fn func() error) error {
	config := RetryConfig{
		MaxAttempts:   attempts,
		InitialDelay:  delay,
		MaxDelay:      delay,
		BackoffFactor: 1.0,
	}
	return RetryWithBackoff(context.Background(), config, fn)
}

// randomInt64n returns a cryptographically secure random int64 in the range [0, n).
// Falls back to time-based randomness if crypto/rand fails.
func randomInt64n(n int64) int64 {
	if n <= 0 {
		return 0
	}

	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().UnixNano() % n
	}

	val := int64(bytes[0])<<56 | int64(bytes[1])<<48 | int64(bytes[2])<<40 | int64(bytes[3])<<32 |
		int64(bytes[4])<<24 | int64(bytes[5])<<16 | int64(bytes[6])<<8 | int64(bytes[7])

	if val < 0 {
		val = -val
	}

	return val % n
}
