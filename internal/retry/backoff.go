package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Default schedule values.
const (
	DefaultBase   = 30 * time.Second
	DefaultCap    = time.Hour
	DefaultJitter = 0.1
)

// Backoff computes the next eligible time of a failed attempt:
// min(Base * 2^attempts, Cap), spread uniformly by +/- Jitter of itself.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64

	mu   sync.Mutex
	rand func() float64
}

// NewBackoff creates a backoff with a time-seeded random source.
func NewBackoff(base, maxDelay time.Duration, jitter float64) *Backoff {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Backoff{Base: base, Cap: maxDelay, Jitter: jitter, rand: rng.Float64}
}

// WithRand replaces the uniform [0,1) source.
func (b *Backoff) WithRand(fn func() float64) *Backoff {
	b.mu.Lock()
	b.rand = fn
	b.mu.Unlock()
	return b
}

// Delay returns the capped exponential delay for attempts, without jitter.
func (b *Backoff) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	// past 2^62 the multiplication overflows; the cap applies long before
	if attempts > 62 {
		return b.Cap
	}
	delay := float64(b.Base) * math.Pow(2, float64(attempts))
	if delay > float64(b.Cap) {
		return b.Cap
	}
	return time.Duration(delay)
}

// Jittered returns Delay(attempts) shifted by delay*Jitter*U(-1,1).
func (b *Backoff) Jittered(attempts int) time.Duration {
	delay := b.Delay(attempts)
	if b.Jitter <= 0 {
		return delay
	}

	b.mu.Lock()
	u := b.rand()*2 - 1
	b.mu.Unlock()

	jittered := float64(delay) + float64(delay)*b.Jitter*u
	if jittered < 0 {
		return 0
	}
	return time.Duration(math.Round(jittered))
}

// Next returns the time at which a failed item becomes eligible again.
func (b *Backoff) Next(attempts int, now time.Time) time.Time {
	return now.Add(b.Jittered(attempts))
}
