// Package ratelimit implements RateLimiter: a token-bucket limiter shared
// by every caller of the LLM client in the process.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/sevigo/codewarden/internal/config"
)

// Limiter wraps golang.org/x/time/rate.Limiter, configured from the
// provider's steady rate and burst capacity.
type Limiter struct {
	limiter *rate.Limiter
}

// New constructs a process-wide Limiter from ratelimit.requests_per_minute
// and ratelimit.burst.
func New(cfg config.RateLimitConfig) *Limiter {
	perSecond := float64(cfg.RequestsPerMinute) / 60.0
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Acquire blocks cooperatively until a permit is available, or until ctx is
// canceled.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// TryAcquire returns immediately: true if a permit was available and
// consumed, false otherwise.
func (l *Limiter) TryAcquire() bool {
	return l.limiter.Allow()
}
