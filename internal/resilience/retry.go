package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior. Delays double after each attempt with
// roughly 25% jitter, capped at MaxDelay.
type RetryConfig struct {
	// Attempts is the total number of tries including the first. A value
	// of 1 means no retries. Default: 3.
	Attempts int

	// BaseDelay is the delay before the first retry. Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default: 10s.
	MaxDelay time.Duration

	// ShouldRetry overrides the default IsTransient check when set.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with the attempt number
	// (1-based) and the error that triggered it.
	OnRetry func(attempt int, err error)
}

// Settings builds a RetryConfig from the flat integers carried in application
// config. Non-positive values fall back to defaults.
func Settings(attempts, backoffMS int) RetryConfig {
	cfg := RetryConfig{}
	if attempts > 0 {
		cfg.Attempts = attempts
	}
	if backoffMS > 0 {
		cfg.BaseDelay = time.Duration(backoffMS) * time.Millisecond
	}
	return cfg
}

// DoVal runs fn until it succeeds, the error is not retryable, the attempt
// budget is spent, or ctx is done. The value from the successful call is
// returned; failures return the zero value and the last error.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt == cfg.Attempts-1 {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// Do is DoVal for functions with no return value.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
			break
		}
	}

	// ±25% jitter so concurrent workers don't retry in lockstep.
	delay += delay * 0.25 * (rand.Float64()*2 - 1)
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry at warn level.
func RetryLogger(operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
