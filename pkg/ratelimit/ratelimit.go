package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter spaces calls to a rate-limited API. The first call passes
// immediately; each later call waits until one interval (optionally
// jittered) has elapsed since the previous one. A nil *Limiter never blocks.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64 // 0.0 to 1.0
	next     time.Time
	now      func() time.Time
}

// NewLimiter creates a limiter allowing rps calls per second with the given
// jitter factor, clamped to [0, 1]. rps <= 0 yields a limiter that never blocks.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	l := &Limiter{jitter: jitter, now: time.Now}
	if rps > 0 {
		l.interval = time.Duration(float64(time.Second) / rps)
	}
	return l
}

// Wait blocks until the caller may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := l.now()
	wait := l.next.Sub(now)
	start := now
	if wait > 0 {
		start = l.next
	}
	l.next = start.Add(l.spacing())
	l.mu.Unlock()

	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// spacing returns the interval with jitter applied; must hold mu.
func (l *Limiter) spacing() time.Duration {
	if l.jitter == 0 {
		return l.interval
	}
	factor := rand.Float64()*2 - 1.0
	return l.interval + time.Duration(float64(l.interval)*l.jitter*factor)
}

// Interval reports the configured base spacing between calls.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
