package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arbihedron/arbihedron-go/internal/exchange"
)

// RateLimiterConfig tunes the per-venue token bucket.
type RateLimiterConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	Burst             int           `json:"burst"`
	MaxWait           time.Duration `json:"max_wait"` // Longest a caller blocks for a token
}

// VenueRateLimiter keeps one token-bucket limiter per venue. Acquire blocks
// up to MaxWait for a token and fails with ErrRateLimited after that; it is
// the admission-control point for all outbound exchange traffic.
type VenueRateLimiter struct {
	config   RateLimiterConfig
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewVenueRateLimiter creates a rate limiter registry.
func NewVenueRateLimiter(config RateLimiterConfig) *VenueRateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = int(config.RequestsPerSecond)
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 2 * time.Second
	}
	return &VenueRateLimiter{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *VenueRateLimiter) limiter(venue string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[venue]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)
		l.limiters[venue] = lim
	}
	return lim
}

// Acquire takes one token for the venue, blocking up to MaxWait.
func (l *VenueRateLimiter) Acquire(ctx context.Context, venue string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.config.MaxWait)
	defer cancel()

	if err := l.limiter(venue).Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: no token for %s within %s", exchange.ErrRateLimited, venue, l.config.MaxWait)
	}
	return nil
}

// Allow reports whether a token is available right now without blocking.
func (l *VenueRateLimiter) Allow(venue string) bool {
	return l.limiter(venue).Allow()
}
