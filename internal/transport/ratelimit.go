package transport

import (
	"context"
	"sync"
	"time"
)

// job is one queued call waiting for its turn on the dispatcher.
type job struct {
	ctx    context.Context
	fn     func(context.Context) (any, error)
	result chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// Throttler serializes calls to a single wrapped operation through a FIFO
// queue and a single dispatcher goroutine, so the N-th call never starts
// earlier than minInterval after the (N-1)-th call started. Unlike a
// token-bucket limiter, a caller that cancels while waiting is removed from
// the queue without advancing the clock.
type Throttler struct {
	minInterval time.Duration

	mu      sync.Mutex
	queue   chan *job
	started bool
}

// NewThrottler creates a throttler with the given minimum spacing between
// dispatches. The dispatcher goroutine is created lazily on first Do call.
func NewThrottler(minInterval time.Duration) *Throttler {
	return &Throttler{
		minInterval: minInterval,
		queue:       make(chan *job, 256),
	}
}

// Do enqueues fn and blocks until it has been dispatched and returned, or ctx
// is cancelled first. Cancellation while queued never reaches fn at all.
func (t *Throttler) Do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	t.ensureDispatcher()

	j := &job{ctx: ctx, fn: fn, result: make(chan jobResult, 1)}

	select {
	case t.queue <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-j.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Throttler) ensureDispatcher() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	go t.dispatch()
}

// dispatch is the single worker that drains the queue one job at a time,
// waiting out the remainder of minInterval between dispatches.
func (t *Throttler) dispatch() {
	var last time.Time
	for j := range t.queue {
		if j.ctx.Err() != nil {
			// Cancelled while queued: drop it without consuming a slot or
			// advancing last, so the clock behaves as if it never arrived.
			continue
		}

		if !last.IsZero() {
			if wait := t.minInterval - time.Since(last); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-j.ctx.Done():
					timer.Stop()
					continue
				}
			}
		}
		if j.ctx.Err() != nil {
			continue
		}
		last = time.Now()

		v, err := j.fn(j.ctx)
		j.result <- jobResult{value: v, err: err}
	}
}
