package papersource

import (
	"math/rand"
	"time"
)

// Backoff tracks the retry state for one top-level request: the attempt
// counter and the current delay. It is scoped to a single call and never
// shared, so concurrent independent searches do not interfere with each
// other's schedules.
//
// The delay grows by Factor after every call to Next. Each returned sleep
// is perturbed by a uniformly sampled multiplicative jitter in
// [-Jitter, +Jitter], which avoids synchronized retries when several
// processes hit the same rate limit at once.
type Backoff struct {
	// Initial is the first delay. Zero means DefaultInitialBackoff.
	Initial time.Duration

	// Factor is the multiplicative growth per attempt. Zero means
	// DefaultBackoffFactor.
	Factor float64

	// Jitter is the jitter fraction applied to each returned delay.
	Jitter float64

	// rng returns a uniform sample in [0, 1). Defaults to math/rand;
	// tests substitute a deterministic source.
	rng func() float64

	delay    time.Duration
	attempts int
}

// Default backoff schedule parameters.
const (
	DefaultInitialBackoff = time.Second
	DefaultBackoffFactor  = 2.0
	DefaultJitter         = 0.1
)

// Next returns the delay to sleep before the next retry and advances the
// schedule. The first call returns Initial (jittered); each subsequent
// call returns the previous un-jittered delay multiplied by Factor.
func (b *Backoff) Next() time.Duration {
	if b.delay == 0 {
		initial := b.Initial
		if initial == 0 {
			initial = DefaultInitialBackoff
		}
		b.delay = initial
	}

	factor := b.Factor
	if factor == 0 {
		factor = DefaultBackoffFactor
	}

	d := b.delay
	if b.Jitter > 0 {
		sample := rand.Float64
		if b.rng != nil {
			sample = b.rng
		}
		// Uniform in [-Jitter, +Jitter].
		offset := (sample()*2 - 1) * b.Jitter
		d = time.Duration(float64(d) * (1 + offset))
	}

	b.delay = time.Duration(float64(b.delay) * factor)
	b.attempts++

	return d
}

// Attempts returns how many retries the schedule has produced so far.
func (b *Backoff) Attempts() int {
	return b.attempts
}
