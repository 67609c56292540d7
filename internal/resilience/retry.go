package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls in-call retry behavior with exponential backoff. The
// same Backoff curve also drives job rescheduling, so the base and cap line
// up with the pipeline's backoff_base_ms and backoff_cap_ms settings.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first. A
	// value of 1 disables retries. Default: 3.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff. Default: 30s.
	MaxDelay time.Duration

	// Multiplier scales the delay after each attempt. Default: 2.0.
	Multiplier float64

	// JitterFraction widens each delay by a random ±fraction so concurrent
	// workers don't retry in lockstep. Default: 0.25.
	JitterFraction float64

	// ShouldRetry overrides the transient check. Nil means IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry is invoked before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the standard configuration for external API
// calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Backoff returns the delay before retry number attempt (0-based), without
// jitter: BaseDelay * Multiplier^attempt, capped at MaxDelay. The job state
// machine uses this directly to schedule re-runs.
func (cfg RetryConfig) Backoff(attempt int) time.Duration {
	cfg = cfg.withDefaults()
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// Do runs fn until it succeeds, exhausts attempts, returns a non-retryable
// error, or the context is canceled.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(jittered(cfg.Backoff(attempt), cfg.JitterFraction))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

func jittered(delay time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return delay
	}
	spread := float64(delay) * fraction
	out := float64(delay) + (rand.Float64()*2-1)*spread
	if out < 0 {
		return 0
	}
	return time.Duration(out)
}

// RetryLogger returns an OnRetry callback that logs each attempt against the
// named service and operation.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
