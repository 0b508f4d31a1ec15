package throttle

import (
	"math/rand/v2"
	"time"
)

// BlockedCooldown is the fixed pause applied when the harvest origin signals
// it has begun blocking the client (HTTP 403/429). It is deliberately longer
// than normal backoff: the origin, not the request, is the problem.
const BlockedCooldown = 8 * time.Second

// Backoff computes retry delays that grow exponentially per attempt with
// added randomization to avoid synchronized retry storms.
type Backoff struct {
	// Base is the delay for attempt 0. Doubles on each subsequent attempt.
	Base time.Duration

	// Max caps the computed delay (before jitter is folded in).
	Max time.Duration
}

// DefaultBackoff returns the policy used by the embedding generator:
// 1s base doubling per attempt, capped at 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Base: 1 * time.Second,
		Max:  30 * time.Second,
	}
}

// Delay returns base * 2^attempt plus random jitter of up to half the base,
// capped at Max. attempt is zero-based; negative values are treated as 0.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := b.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.Max {
			delay = b.Max
			break
		}
	}

	if jitterRange := int64(b.Base / 2); jitterRange > 0 {
		delay += time.Duration(rand.Int64N(jitterRange))
	}

	if delay > b.Max {
		delay = b.Max
	}
	return delay
}
