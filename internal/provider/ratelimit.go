package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/banktrail/ingestor/internal/platform/apperr"
)

// RateLimiters holds one token bucket per provider (§5: "per-provider
// concurrency caps and per-provider rate-limit tokens"). Exhaustion is a
// throttled skip, never a failure (§7 RateLimited policy).
type RateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	defaults map[string]rate.Limit
	burst    int
}

func NewRateLimiters(perProviderRPS map[string]float64, burst int) *RateLimiters {
	defaults := make(map[string]rate.Limit, len(perProviderRPS))
	for id, rps := range perProviderRPS {
		defaults[id] = rate.Limit(rps)
	}

	if burst <= 0 {
		burst = 1
	}

	return &RateLimiters{limiters: make(map[string]*rate.Limiter), defaults: defaults, burst: burst}
}

func (rl *RateLimiters) limiterFor(providerID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[providerID]; ok {
		return l
	}

	limit := rl.defaults[providerID]
	if limit == 0 {
		limit = rate.Limit(5) // conservative default: 5 req/s
	}

	l := rate.NewLimiter(limit, rl.burst)
	rl.limiters[providerID] = l

	return l
}

// Acquire blocks for at most wait before giving up; exceeding wait without
// a token surfaces as RateLimited so the caller treats it as a throttled
// skip rather than a job failure.
func (rl *RateLimiters) Acquire(ctx context.Context, providerID string, wait time.Duration) error {
	l := rl.limiterFor(providerID)

	if l.Allow() {
		return nil
	}

	reservation := l.Reserve()
	if !reservation.OK() {
		return apperr.RateLimited{ProviderID: providerID}
	}

	delay := reservation.Delay()
	if delay > wait {
		reservation.Cancel()
		return apperr.RateLimited{ProviderID: providerID, RetryAfter: int(delay.Seconds())}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
