package services_test

import (
	"context"
	"testing"
	"time"

	"paperlink/internal/services"
)

func fastPolicy(attempts int) services.RetryPolicy {
	return services.RetryPolicy{
		Attempts:       attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := services.Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		if calls < 3 {
			return services.Wrap(services.ErrTransient, "test", "", "", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryDoesNotRetryPermanent(t *testing.T) {
	calls := 0
	err := services.Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return services.Wrap(services.ErrPermanent, "test", "", "", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("permanent failure should not retry, got %d attempts", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := services.Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return services.Wrap(services.ErrTransient, "test", "", "", nil)
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := services.Retry(ctx, fastPolicy(4), func() error {
		return services.Wrap(services.ErrTransient, "test", "", "", nil)
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
