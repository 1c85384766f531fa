package agent

import (
	"context"
	"fmt"
)

// Executor runs one work unit. Implementations may be backed by an
// external process, a sandboxed runner, or a hosted model call; the
// run-loop is agnostic to which.
type Executor interface {
	// Name identifies the executor variant for logs and transcripts.
	Name() string

	// Execute runs the unit. The context carries the dispatch deadline;
	// implementations must stop work when it is cancelled.
	Execute(ctx context.Context, ec ExecContext) (*Result, error)
}

// Kind selects an executor variant in phase configuration.
type Kind string

const (
	KindSubprocess Kind = "subprocess"
	KindSandbox    Kind = "sandbox"
	KindModel      Kind = "model"
)

// ExecutorOptions carries the inputs the concrete variants need.
type ExecutorOptions struct {
	// Command is the argv template for process-backed executors. The
	// agent name is appended as the final argument.
	Command []string

	// AllowedEnv whitelists environment variables for the sandbox
	// variant. Empty means a fully scrubbed environment.
	AllowedEnv []string

	// APIKey, BaseURL and Model configure the hosted-model variant.
	APIKey  string
	BaseURL string
	Model   string
}

// SelectExecutor resolves an executor variant from phase configuration.
// Selection is a pure function of the declared kind, resolved once per
// controller construction.
func SelectExecutor(kind Kind, opts ExecutorOptions) (Executor, error) {
	switch kind {
	case KindSubprocess, "":
		return NewSubprocessExecutor(opts.Command), nil
	case KindSandbox:
		return NewSandboxExecutor(opts.Command, opts.AllowedEnv), nil
	case KindModel:
		return NewModelExecutor(opts.APIKey, opts.BaseURL, opts.Model)
	default:
		return nil, fmt.Errorf("unknown executor kind: %q", kind)
	}
}
