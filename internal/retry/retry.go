package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/loykin/s3smoke/internal/common"
)

// Config holds the bounds of a retried operation.
type Config struct {
	MaxAttempts     int           // Total attempts including the first one
	InitialDelay    time.Duration // Delay before the second attempt
	MaxDelay        time.Duration // Upper bound for computed delays (0 = unbounded)
	BackoffFactor   float64       // Multiplier per attempt; 1 keeps the delay fixed
	RetryableErrors []string      // Error substrings that trigger a retry; empty retries everything
}

// FixedConfig returns a config that retries every failure with a constant delay.
func FixedConfig(attempts int, delay time.Duration) *Config {
	return &Config{
		MaxAttempts:   attempts,
		InitialDelay:  delay,
		BackoffFactor: 1,
	}
}

// DefaultRetryConfig retries transient network failures three times with
// exponential backoff. The history journal uses it to reach its database.
func DefaultRetryConfig() *Config {
	return &Config{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"timeout",
			"temporary failure",
			"broken pipe",
			"slowdown",
			"service unavailable",
		},
	}
}

// isRetryableError checks if an error should trigger a retry
func (rc *Config) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if len(rc.RetryableErrors) == 0 {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, retryableErr := range rc.RetryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}
	return false
}

// calculateDelay returns the wait after the given zero-based attempt.
func (rc *Config) calculateDelay(attempt int) time.Duration {
	factor := rc.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(factor, float64(attempt)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	return delay
}

// Operation is one attempt; attempt is 1-based.
type Operation func(ctx context.Context, attempt int) error

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs op until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. It sleeps only between attempts, never after the
// last one, and returns the number of attempts made.
func Do(ctx context.Context, config *Config, op Operation) (int, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	logger := common.GetLogger().WithComponent("retry")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return attempt, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		if !config.isRetryableError(err) {
			logger.Debug("operation failed with non-retryable error", "error", err, "attempt", attempt)
			return attempt, err
		}

		delay := config.calculateDelay(attempt - 1)
		logger.Debug("operation failed, retrying",
			"error", err,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"retry_delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("operation cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return maxAttempts, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}
