package runloop

import "errors"

// Sentinel errors for the operator-facing taxonomy. Commands that fail
// with these raise synchronously and never mutate persisted state.
var (
	// ErrInvalidState marks a command issued in the wrong run state,
	// e.g. approving consensus when the run is not awaiting it.
	ErrInvalidState = errors.New("command not valid in current run state")

	// ErrConfiguration marks an unknown or disabled phase target, or a
	// malformed phase definition.
	ErrConfiguration = errors.New("configuration error")

	// ErrBudgetExceeded is surfaced by the budget collaborator and is
	// fatal for the run.
	ErrBudgetExceeded = errors.New("budget exceeded")
)
