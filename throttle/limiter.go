package throttle

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between calls tagged with the same
// endpoint key. It serializes admission, not the calls themselves: the
// caller blocks until its reserved slot arrives, then proceeds concurrently
// with other callers.
//
// The last-call timestamps are held in the Limiter rather than ambient
// global state, and the clock is injectable, so tests can drive it with a
// fake clock.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    map[string]time.Time
	now         func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock replaces the limiter's clock. Intended for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter that admits at most one call per minInterval
// per endpoint key.
func NewLimiter(minInterval time.Duration, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		minInterval: minInterval,
		lastCall:    make(map[string]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until at least the minimum interval has elapsed since the last
// admitted call for endpointKey, then records this call's slot. It is safe
// for concurrent use; concurrent waiters on the same key are admitted one
// interval apart. Returns early with the context's error if ctx is done.
func (l *Limiter) Wait(ctx context.Context, endpointKey string) error {
	l.mu.Lock()
	now := l.now()
	slot := now
	if last, ok := l.lastCall[endpointKey]; ok {
		if next := last.Add(l.minInterval); next.After(slot) {
			slot = next
		}
	}
	l.lastCall[endpointKey] = slot
	l.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NextDelay reports how long a call for endpointKey would have to wait right
// now, without reserving a slot. Mostly useful for tests and diagnostics.
func (l *Limiter) NextDelay(endpointKey string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.lastCall[endpointKey]
	if !ok {
		return 0
	}
	delay := last.Add(l.minInterval).Sub(l.now())
	if delay < 0 {
		return 0
	}
	return delay
}
