package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCooldown is applied after a 429 that carried no Retry-After.
const DefaultCooldown = 60 * time.Second

// Limiter is a token bucket with a cool-down window set by upstream throttling.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// New creates a limiter allowing rps sustained requests and burst at once.
// rps <= 0 disables the token bucket but keeps the cool-down.
func New(rps float64, burst int) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent, honoring any cool-down first.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Throttled pushes the next allowed request back by after (DefaultCooldown when <= 0).
func (l *Limiter) Throttled(after time.Duration) {
	if after <= 0 {
		after = DefaultCooldown
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if at := time.Now().Add(after); at.After(l.retryAt) {
		l.retryAt = at
	}
}

// CoolingDown reports whether a throttle window is still open.
func (l *Limiter) CoolingDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Now().Before(l.retryAt)
}
