// Package ratelimit enforces a minimum interval between requests to the same host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/campusdata/admissions-crawler/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter manages per-host rate limits. Hosts are limited independently,
// so a slow university site never stalls requests to the others.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
}

// New creates a Limiter that allows one request per interval for each host.
// A zero or negative interval disables limiting.
func New(interval time.Duration) *Limiter {
	r := rate.Inf
	if interval > 0 {
		r = rate.Every(interval)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
	}
}

// Wait blocks until a token is available for the host of the given URL,
// respecting the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.rate, 1)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// Only record a delay when we actually waited.
	if duration := time.Since(start); duration > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, duration)
	}
	return nil
}
