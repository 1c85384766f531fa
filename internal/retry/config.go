// Package retry provides the reliability layer for agent dispatches:
// timeout wrapping, exponential backoff with jitter, and retryability
// classification for transient failures.
package retry

import (
	"fmt"
	"time"
)

// Config configures retry behavior for a dispatched work unit.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// A unit is attempted at most 1+MaxRetries times.
	MaxRetries int `json:"max_retries" koanf:"max_retries"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `json:"base_delay" koanf:"base_delay"`

	// JitterFraction perturbs each delay by a uniform amount in
	// ±(delay × JitterFraction). Zero disables jitter.
	JitterFraction float64 `json:"jitter_fraction" koanf:"jitter_fraction"`

	// BackoffMultiplier is the exponential growth factor between retries.
	BackoffMultiplier float64 `json:"backoff_multiplier" koanf:"backoff_multiplier"`

	// RetryableExitCodes lists process exit codes treated as transient.
	RetryableExitCodes []int `json:"retryable_exit_codes" koanf:"retryable_exit_codes"`

	// RetryableMessages lists substrings that mark an error message as
	// transient. Matching is case-insensitive.
	RetryableMessages []string `json:"retryable_messages" koanf:"retryable_messages"`
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:         2,
		BaseDelay:          2 * time.Second,
		JitterFraction:     0.2,
		BackoffMultiplier:  2.0,
		RetryableExitCodes: []int{75}, // EX_TEMPFAIL
		RetryableMessages:  []string{"rate limit", "timeout", "temporarily unavailable", "connection reset"},
	}
}

// ApplyDefaults sets default values for unset fields. A fully zero-value
// config takes every default; a partially configured one keeps its
// explicit values (including max_retries: 0) and only fills the fields
// that cannot meaningfully be zero.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.isZero() {
		*c = defaults
		return
	}

	if c.BaseDelay == 0 {
		c.BaseDelay = defaults.BaseDelay
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
}

func (c *Config) isZero() bool {
	return c.MaxRetries == 0 &&
		c.BaseDelay == 0 &&
		c.JitterFraction == 0 &&
		c.BackoffMultiplier == 0 &&
		len(c.RetryableExitCodes) == 0 &&
		len(c.RetryableMessages) == 0
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("base_delay must be >= 0, got %s", c.BaseDelay)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		return fmt.Errorf("jitter_fraction must be in [0, 1], got %g", c.JitterFraction)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1, got %g", c.BackoffMultiplier)
	}
	return nil
}
