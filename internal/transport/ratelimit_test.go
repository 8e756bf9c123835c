package transport

import (
	"context"
	"testing"
	"time"
)

func TestThrottlerSerializesCalls(t *testing.T) {
	t.Parallel()

	th := NewThrottler(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := th.Do(ctx, func(ctx context.Context) (any, error) {
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Do returned error: %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 100*time.Millisecond {
		t.Errorf("expected at least 100ms for 3 calls spaced 50ms apart, got %v", elapsed)
	}
}

func TestThrottlerCancelDoesNotAdvanceClock(t *testing.T) {
	t.Parallel()

	th := NewThrottler(200 * time.Millisecond)

	// warm the dispatcher with one immediate call
	_, _ = th.Do(context.Background(), func(ctx context.Context) (any, error) { return nil, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := th.Do(ctx, func(ctx context.Context) (any, error) {
		t.Fatal("fn should not run: call should be cancelled while queued")
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected context deadline error")
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("cancellation took too long, throttler may be waiting out the interval")
	}
}
