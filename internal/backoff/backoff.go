// Package backoff computes jittered retry delays for the synchronizer and KV helpers.
package backoff

import (
	"context"
	rand "math/rand/v2"
	"time"
)

const (
	defaultBase       = 50 * time.Millisecond
	defaultMultiplier = 3.0
)

// Jitter computes the next decorrelated jitter delay with a cap.
//
// Given the previous delay, the next delay is drawn from
// [base, prev*mult) and clamped to capDur:
//
//	next = min(cap, base + rand(prev*mult - base))
//
// Behavior:
//   - prev <= 0 starts from base
//   - mult < 1.0 falls back to 1.0 (no growth)
//   - capDur below base returns capDur
//   - a nil rng uses the package-level PRNG
func Jitter(prev, base time.Duration, mult float64, capDur time.Duration, rng *rand.Rand) time.Duration {
	if base <= 0 {
		base = defaultBase
	}
	if mult < 1.0 {
		mult = 1.0
	}
	if capDur > 0 && capDur < base {
		return capDur
	}

	if prev <= 0 {
		return base
	}

	spread := time.Duration(float64(prev)*mult) - base
	if spread <= 0 {
		spread = base
	}

	var jitter int64
	if rng != nil {
		jitter = rng.Int64N(int64(spread))
	} else {
		jitter = rand.Int64N(int64(spread)) //nolint:gosec // non-crypto backoff jitter
	}

	next := base + time.Duration(jitter)
	if capDur > 0 && next > capDur {
		return capDur
	}

	return next
}

// NewRNG returns a deterministic RNG when seed is non-zero and nil otherwise,
// so production callers share the package-level PRNG.
//
//nolint:gosec
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	s1 := uint64(seed)
	s2 := s1 ^ 0x9e3779b97f4a7c15

	return rand.New(rand.NewPCG(s1, s2))
}

// Backoff tracks the delay sequence of one retrying operation.
//
// A Backoff is not safe for concurrent use.
type Backoff struct {
	base time.Duration
	max  time.Duration
	mult float64
	rng  *rand.Rand
	prev time.Duration
}

// New creates a Backoff.
//
// Parameters:
//   - base: First delay, and the lower bound of every delay
//   - maxDelay: Upper bound of every delay (0 means unbounded)
//   - seed: Non-zero for a reproducible sequence in tests
//
// Returns:
//   - *Backoff: Backoff starting at base
//
// Example:
//
//	b := backoff.New(time.Second, 30*time.Second, 0)
//	for {
//	    if err := sync(ctx); err == nil {
//	        b.Reset()
//	        break
//	    }
//	    if err := b.Wait(ctx); err != nil {
//	        return err
//	    }
//	}
func New(base, maxDelay time.Duration, seed int64) *Backoff {
	return &Backoff{base: base, max: maxDelay, mult: defaultMultiplier, rng: NewRNG(seed)}
}

// Next returns the next delay and advances the sequence.
func (b *Backoff) Next() time.Duration {
	b.prev = Jitter(b.prev, b.base, b.mult, b.max, b.rng)
	return b.prev
}

// Reset restarts the sequence at the base delay.
func (b *Backoff) Reset() {
	b.prev = 0
}

// Wait sleeps for the next delay or until ctx is done.
//
// Returns:
//   - error: ctx.Err() when the context ended first, nil otherwise
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
