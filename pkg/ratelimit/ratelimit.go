// Package ratelimit enforces the minimum inter-request delay owed to each
// external source. Limits are per-source and per-process; the batch jobs are
// single-process so no shared state is needed.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces outbound requests to one source.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns a limiter that allows one request per minDelay with no
// burst headroom. A non-positive delay disables limiting.
func NewLimiter(minDelay time.Duration) *Limiter {
	if minDelay <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(minDelay), 1)}
}

// Wait blocks until the next request may be issued or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Registry hands out one limiter per source name.
type Registry struct {
	minDelay time.Duration

	mu       sync.Mutex
	limiters map[string]*Limiter
}

func NewRegistry(minDelay time.Duration) *Registry {
	return &Registry{
		minDelay: minDelay,
		limiters: make(map[string]*Limiter),
	}
}

// For returns the limiter for source, creating it on first use.
func (r *Registry) For(source string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[source]
	if !ok {
		l = NewLimiter(r.minDelay)
		r.limiters[source] = l
	}
	return l
}
