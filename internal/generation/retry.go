package generation

import (
	"math/rand"
	"time"

	"github.com/mrskwiw/content-jumpstart-backend-sub005/internal/llm"
)

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 10 * time.Second
)

// RetryPolicy decides whether a failed attempt is worth repeating and how
// long to wait before doing so. It is a pure value: no clock, no I/O, so it
// can be unit tested without a backend.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// Jitter perturbs a computed backoff. Nil means ±25% via math/rand.
	Jitter func(time.Duration) time.Duration
}

// NewRetryPolicy fills zero fields with defaults.
func NewRetryPolicy(maxAttempts int, base, max time.Duration) RetryPolicy {
	p := RetryPolicy{MaxAttempts: maxAttempts, BaseBackoff: base, MaxBackoff: max}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = defaultBaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	return p
}

// ShouldRetry reports whether another attempt should follow the given error.
// attempt is the number of attempts already made (1 after the first call).
// Only transient provider failures are retried; everything else terminates
// the item immediately.
func (p RetryPolicy) ShouldRetry(attempt int, err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if attempt >= maxAttempts {
		return false, 0
	}
	if !llm.IsTransient(err) {
		return false, 0
	}
	return true, p.backoff(attempt)
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}
	max := p.MaxBackoff
	if max <= 0 {
		max = defaultMaxBackoff
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	if d > max {
		d = max
	}

	jitter := p.Jitter
	if jitter == nil {
		jitter = defaultJitter
	}
	d = jitter(d)
	if d < 0 {
		d = 0
	}
	if d > max {
		d = max
	}
	return d
}

func defaultJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	quarter := int64(d) / 4
	if quarter == 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(2*quarter)-quarter)
}
