package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout marks a dispatch that was cancelled by its hard timeout.
// Timeouts are always retryable.
var ErrTimeout = errors.New("dispatch timed out")

// ExitError carries the exit code of a failed work unit so the retry
// layer can classify it against the configured retryable set.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exit code %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Retryable reports whether an error should be retried under the given
// configuration. Timeouts are always retryable; an error carrying an exit
// code in the retryable set is retryable; an error whose message contains
// any configured substring (case-insensitive) is retryable. Exit-code and
// message matches are a flat OR with no per-layer distinction.
func Retryable(cfg Config, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		code := coder.ExitCode()
		for _, retryable := range cfg.RetryableExitCodes {
			if code == retryable {
				return true
			}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, substr := range cfg.RetryableMessages {
		if substr == "" {
			continue
		}
		if strings.Contains(msg, strings.ToLower(substr)) {
			return true
		}
	}

	return false
}
