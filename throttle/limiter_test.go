package throttle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FirstCallImmediate(t *testing.T) {
	limiter := NewLimiter(100 * time.Millisecond)

	start := time.Now()
	err := limiter.Wait(context.Background(), "origin")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "first call should not wait")
}

func TestLimiter_EnforcesMinInterval(t *testing.T) {
	limiter := NewLimiter(80 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "origin"))
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "origin"))
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond,
		"second call should wait out the interval")
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewLimiter(200 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx, "harvest"))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, "embed"))
	assert.Less(t, time.Since(start), 50*time.Millisecond,
		"a different endpoint key should not be delayed")
}

func TestLimiter_ConcurrentWaitersAdmittedOneIntervalApart(t *testing.T) {
	const waiters = 4
	const interval = 40 * time.Millisecond

	limiter := NewLimiter(interval)
	ctx := context.Background()

	var mu sync.Mutex
	var admissions []time.Time

	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, limiter.Wait(ctx, "origin"))
			mu.Lock()
			admissions = append(admissions, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, admissions, waiters)

	// The whole group must span at least (waiters-1) intervals.
	var first, last time.Time
	for _, ts := range admissions {
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	minSpan := time.Duration(waiters-1) * interval
	assert.GreaterOrEqual(t, last.Sub(first), minSpan-10*time.Millisecond)
}

func TestLimiter_ContextCanceled(t *testing.T) {
	limiter := NewLimiter(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, limiter.Wait(ctx, "origin"))

	cancel()
	err := limiter.Wait(ctx, "origin")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimiter_NextDelay(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	limiter := NewLimiter(10*time.Second, WithClock(func() time.Time { return current }))

	assert.Equal(t, time.Duration(0), limiter.NextDelay("origin"), "unknown key has no delay")

	require.NoError(t, limiter.Wait(context.Background(), "origin"))
	assert.Equal(t, 10*time.Second, limiter.NextDelay("origin"))

	current = base.Add(4 * time.Second)
	assert.Equal(t, 6*time.Second, limiter.NextDelay("origin"))

	current = base.Add(15 * time.Second)
	assert.Equal(t, time.Duration(0), limiter.NextDelay("origin"))
}
