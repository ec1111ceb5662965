package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first try.
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration

	// Multiplier scales the backoff after each attempt.
	Multiplier float64

	// JitterFraction adds random jitter as a fraction of the computed delay.
	JitterFraction float64

	// ShouldRetry optionally overrides the default transient-error check.
	ShouldRetry func(err error) bool
}

// DefaultRetryConfig returns the retry configuration used for matching
// service calls. Short and shallow: the engine has its own heuristic
// fallback, so retries only smooth over momentary blips.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	return cfg
}

// DoVal executes fn with retries on transient errors, preserving the return
// value of the successful call. Context cancellation stops retries
// immediately.
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

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		delay := computeBackoff(attempt, cfg)
		zap.L().Debug("resilience: retrying after error",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// computeBackoff returns the delay before the retry following attempt,
// with exponential growth and jitter.
func computeBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	if cfg.JitterFraction > 0 {
		jitter := delay * cfg.JitterFraction
		delay = delay - jitter + rand.Float64()*2*jitter
	}
	return time.Duration(delay)
}
