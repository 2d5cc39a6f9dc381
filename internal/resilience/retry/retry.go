// Package retry runs an operation repeatedly with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one
	MaxAttempts int

	// InitialDelay is the delay before the second attempt
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff
	Multiplier float64

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0)
	JitterFraction float64

	// RetryIf decides whether an error is worth another attempt.
	// nil means IsRetryable.
	RetryIf func(error) bool
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// ChannelSendConfig is used for one channel's delivery loop.
// Every provider error is retried; the caller decides the attempt budget.
func ChannelSendConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:    maxAttempts,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		RetryIf:        Always,
	}
}

// DBConfig returns configuration optimized for database operations.
// Fast retry for transient connection issues.
func DBConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Always retries every non-nil error.
func Always(err error) bool { return err != nil }

// Do calls fn until it succeeds, returns a non-retryable error, or MaxAttempts is
// reached. fn receives the 1-based attempt number. Attempts are strictly sequential.
//
// Do returns the number of attempts made and the last error. If ctx is done
// before an attempt starts, Do stops and the returned error wraps both ctx.Err()
// and the last attempt's error.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) (int, error) {
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = IsRetryable
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempts, abortErr(err, lastErr)
		}

		attempts = attempt
		lastErr = fn(attempt)
		if lastErr == nil {
			return attempts, nil
		}
		if !retryIf(lastErr) || attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return attempts, abortErr(ctx.Err(), lastErr)
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		delay = addJitter(delay, cfg.JitterFraction)
	}

	return attempts, lastErr
}

func abortErr(ctxErr, lastErr error) error {
	if lastErr == nil {
		return fmt.Errorf("retry aborted: %w", ctxErr)
	}
	return fmt.Errorf("retry aborted: %w: %w", ctxErr, lastErr)
}

// WithBackoff is Do for operations that do not care about the attempt number.
// Retries and the final outcome are logged on the default logger.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	attempts, err := Do(ctx, cfg, func(attempt int) error {
		err := fn()
		if err != nil && attempt < cfg.MaxAttempts {
			slog.Warn("operation failed, retrying",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Any("error", err))
		}
		return err
	})
	if err == nil {
		if attempts > 1 {
			slog.Info("operation succeeded after retry", slog.Int("attempt", attempts))
		}
		return nil
	}
	if attempts >= cfg.MaxAttempts {
		return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
	}
	return err
}

// IsRetryable reports whether err looks transient: network timeouts, refused or
// reset connections, and errors that declare themselves retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH)
}

// addJitter adds up to JitterFraction of d as random jitter.
func addJitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- jitter does not need cryptographic randomness
	jitter := time.Duration(rand.Float64() * float64(duration) * jitterFraction)
	return duration + jitter
}
