package mretry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff returns the delay before retry attempt (1-indexed), jittered
// within [cap*(1-JitterFactor), cap], where cap grows exponentially from
// InitialBackoff up to MaxBackoff.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	cap := float64(c.InitialBackoff) * math.Pow(2, float64(attempt-1))
	if cap > float64(c.MaxBackoff) {
		cap = float64(c.MaxBackoff)
	}

	jittered := cap - cap*c.JitterFactor*rand.Float64()

	return time.Duration(jittered)
}

// Do runs fn up to MaxRetries+1 times, sleeping Backoff(attempt) between
// attempts, stopping early if ctx is canceled or fn's error is not
// retryable as judged by isRetryable.
func Do(ctx context.Context, cfg Config, isRetryable func(error) bool, fn func() error) error {
	var err error

	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if isRetryable != nil && !isRetryable(err) {
			return err
		}

		if attempt > cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Backoff(attempt)):
		}
	}

	return err
}
