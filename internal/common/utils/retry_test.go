package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoff_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_RecoversAfterFailures(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1.0,
	}

	calls := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1.0,
	}

	calls := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		calls++
		return errors.New("still broken")
	})

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_NonRetryableReturnsImmediately(t *testing.T) {
	permanent := errors.New("invalid_grant")
	config := RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  time.Millisecond,
		MaxDelay:      time.Millisecond,
		BackoffFactor: 1.0,
		RetryableErrors: func(err error) bool {
			return !errors.Is(err, permanent)
		},
	}

	calls := 0
	err := RetryWithBackoff(context.Background(), config, func() error {
		calls++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error unchanged, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Second,
		BackoffFactor: 1.0,
	}

	err := RetryWithBackoff(ctx, config, func() error {
		return errors.New("fail")
	})

	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation error, got %v", err)
	}
}

func TestRetry_FixedDelay(t *testing.T) {
	calls := 0
	err := Retry(2, time.Millisecond, func() error {
		calls++
		return errors.New("nope")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}
