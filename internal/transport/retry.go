package transport

import (
	"context"
	"errors"
	"math/rand"
	"time"

	stockxerrors "github.com/cyberoby/stockx/errors"
)

// RetryPolicy retries an operation that returns a *stockxerrors.RequestError
// using exponential backoff with jitter, bounded by both attempt count and a
// total wall-clock budget. Composed INSIDE the throttler: retries also
// consume the throttler's slot, per the fixed cache->throttle->retry->raw
// composition order.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Timeout      time.Duration
}

// Do invokes fn, retrying on transient status codes until success, a
// non-retryable error, attempts are exhausted, or the timeout budget elapses.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	var slept time.Duration
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		var reqErr *stockxerrors.RequestError
		if !errors.As(err, &reqErr) || !reqErr.Retryable() {
			return nil, err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		base := p.InitialDelay * time.Duration(1<<uint(attempt))
		jitter := time.Duration(rand.Int63n(int64(base)/10 + 1))
		delay := base + jitter

		if slept+delay >= p.Timeout {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		slept += delay
	}

	return nil, lastErr
}
