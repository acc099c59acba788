// Package retry implements bounded exponential backoff for backend calls.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures retry behavior with exponential backoff.
type Config struct {
	MaxRetries int           // maximum retry attempts after the first try
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // upper bound on any single delay
	Multiplier float64       // exponential backoff multiplier
	Jitter     bool          // add random jitter to avoid thundering herd
}

// DefaultConfig returns the retry configuration used for backend calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Do runs op, retrying on errors for which retryable returns true, up to
// cfg.MaxRetries additional attempts. It returns nil as soon as op succeeds
// and the last error otherwise. Context cancellation aborts the wait between
// attempts.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, op func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			if attempt > 0 {
				log.Debug().Int("attempts", attempt+1).Msg("operation succeeded after retry")
			}
			return nil
		}

		if attempt >= cfg.MaxRetries || !retryable(lastErr) {
			return lastErr
		}

		delay := calculateDelay(cfg, attempt)
		log.Warn().Err(lastErr).
			Int("attempt", attempt+1).
			Int("max_attempts", cfg.MaxRetries+1).
			Dur("delay", delay).
			Msg("operation failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}

// calculateDelay computes baseDelay * multiplier^attempt, capped at
// cfg.MaxDelay, with up to 10% random jitter when enabled.
func calculateDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}
