// Package ratelimit implements the per-domain gate bounding outbound request rate.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/newsforge/newsforge/internal/telemetry"
)

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the minimum spacing between request starts per domain.
	MinInterval time.Duration
	// MaxConcurrent caps in-flight requests per domain.
	MaxConcurrent int
}

// Limiter manages per-domain pacing and concurrency. Domain entries are
// created lazily and kept for the process lifetime, so a burst for one
// domain never delays another.
type Limiter struct {
	mu      sync.Mutex
	domains map[string]*domainGate
	cfg     Config
}

type domainGate struct {
	pace  *rate.Limiter
	slots chan struct{}
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Limiter{
		domains: make(map[string]*domainGate),
		cfg:     cfg,
	}
}

func (l *Limiter) gate(domain string) *domainGate {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.domains[domain]
	if !ok {
		limit := rate.Inf
		if l.cfg.MinInterval > 0 {
			limit = rate.Every(l.cfg.MinInterval)
		}
		g = &domainGate{
			pace:  rate.NewLimiter(limit, 1),
			slots: make(chan struct{}, l.cfg.MaxConcurrent),
		}
		l.domains[domain] = g
	}
	return g
}

// Acquire blocks until a request to the domain may start, then returns a
// release func that frees the concurrency slot. It never fails except on
// context cancellation.
func (l *Limiter) Acquire(ctx context.Context, domain string) (func(), error) {
	g := l.gate(domain)

	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("rate limit acquire: %w", ctx.Err())
	}

	start := time.Now()
	if err := g.pace.Wait(ctx); err != nil {
		<-g.slots
		// rate.Wait fails for context reasons only, but reports a deadline
		// shortfall with its own error value while ctx.Err() is still nil.
		// Callers classify on the context sentinels, so surface those.
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
		} else {
			err = context.DeadlineExceeded
		}
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		telemetry.ObserveRateLimitDelay(domain, waited)
	}

	return func() { <-g.slots }, nil
}
