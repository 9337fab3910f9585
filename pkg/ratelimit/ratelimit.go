package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter paces outbound search queries so that a burst of keyword searches
// stays under provider rate limits. It is safe for concurrent use.
type Limiter struct {
	ticker   *time.Ticker
	ch       <-chan time.Time
	interval time.Duration
	jitter   float64 // 0.0 to 1.0

	mu   sync.Mutex
	rand func() float64
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithRand replaces the jitter random source; tests use it for determinism.
func WithRand(fn func() float64) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.rand = fn
		}
	}
}

// NewLimiter creates a limiter releasing at most rps operations per second.
// Jitter (clamped to [0,1]) adds up to jitter*interval of extra delay.
// If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64, opts ...Option) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	l := &Limiter{jitter: jitter, rand: rand.Float64}
	for _, opt := range opts {
		opt(l)
	}

	if rps <= 0 {
		return l
	}

	l.interval = time.Duration(float64(time.Second) / rps)
	l.ticker = time.NewTicker(l.interval)
	l.ch = l.ticker.C
	return l
}

// Wait blocks until the next operation may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.ch == nil {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
	}

	if l.jitter == 0 {
		return nil
	}

	l.mu.Lock()
	extra := time.Duration(float64(l.interval) * l.jitter * l.rand())
	l.mu.Unlock()

	return Sleep(ctx, extra)
}

// Stop releases the underlying ticker.
func (l *Limiter) Stop() {
	if l != nil && l.ticker != nil {
		l.ticker.Stop()
	}
}

// Sleep pauses for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
