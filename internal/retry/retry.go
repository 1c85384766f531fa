package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Attempt records one execution attempt for the per-unit transcript.
type Attempt struct {
	// Number is 1-based: the first attempt is 1.
	Number int `json:"number"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// Error is empty on success.
	Error string `json:"error,omitempty"`

	// Retryable reports how the error was classified. False on success.
	Retryable bool `json:"retryable,omitempty"`
}

// Observer receives every attempt, success or failure, as it completes.
type Observer func(Attempt)

// Do runs op under a hard timeout with retry and exponential backoff.
//
// Each attempt gets a fresh context deadline of timeout (no timeout if
// zero). The k-th retry is delayed by BaseDelay × BackoffMultiplier^(k-1),
// perturbed by uniform jitter in ±(delay × JitterFraction). Up to
// 1+MaxRetries attempts are made; non-retryable errors propagate on first
// occurrence. The parent context cancels the whole loop.
func Do(ctx context.Context, cfg Config, timeout time.Duration, op func(context.Context) error, observe Observer) error {
	cfg.ApplyDefaults()

	var lastErr error
	for attempt := 1; attempt <= 1+cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := runOnce(ctx, timeout, op)
		elapsed := time.Since(start)

		record := Attempt{
			Number:    attempt,
			StartedAt: start,
			Duration:  elapsed,
		}
		if err != nil {
			record.Error = err.Error()
			record.Retryable = Retryable(cfg, err)
		}
		if observe != nil {
			observe(record)
		}

		if err == nil {
			return nil
		}
		lastErr = err

		if !record.Retryable {
			return err
		}
		if attempt == 1+cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(Delay(cfg, attempt)):
		}
	}

	return fmt.Errorf("exhausted %d attempts: %w", 1+cfg.MaxRetries, lastErr)
}

// Delay returns the backoff delay after the given 1-based attempt number,
// i.e. the delay before retry k == attempt.
func Delay(cfg Config, attempt int) time.Duration {
	cfg.ApplyDefaults()

	delay := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if cfg.JitterFraction > 0 {
		jitter := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// runOnce executes op with its own deadline, mapping deadline expiry to
// ErrTimeout so classification treats it as always retryable.
func runOnce(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(attemptCtx)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, timeout, err)
	}
	return err
}
