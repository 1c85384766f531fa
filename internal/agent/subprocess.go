package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fyrsmithlabs/phaserun/internal/retry"
)

// SubprocessExecutor runs a work unit as an external process. The process
// receives the execution context as JSON on stdin and may report produced
// artifact paths, one per line, in a trailing "artifacts:" block on stdout.
type SubprocessExecutor struct {
	command []string
}

// NewSubprocessExecutor creates a process-backed executor. command is the
// argv template; the agent name is appended as the final argument.
func NewSubprocessExecutor(command []string) *SubprocessExecutor {
	return &SubprocessExecutor{command: command}
}

// Name identifies the executor variant.
func (e *SubprocessExecutor) Name() string {
	return "subprocess"
}

// Execute runs the configured command. A non-zero exit code is returned as
// a retry.ExitError so the reliability layer can classify it.
func (e *SubprocessExecutor) Execute(ctx context.Context, ec ExecContext) (*Result, error) {
	return runProcess(ctx, e.command, nil, ec)
}

// SandboxExecutor is a subprocess variant with a scrubbed environment and
// the working directory pinned to the unit's workdir.
type SandboxExecutor struct {
	command    []string
	allowedEnv []string
}

// NewSandboxExecutor creates a sandboxed process executor. allowedEnv
// whitelists environment variable names passed through to the child; an
// empty whitelist means a fully scrubbed environment.
func NewSandboxExecutor(command, allowedEnv []string) *SandboxExecutor {
	return &SandboxExecutor{command: command, allowedEnv: allowedEnv}
}

// Name identifies the executor variant.
func (e *SandboxExecutor) Name() string {
	return "sandbox"
}

// Execute runs the command with only whitelisted environment variables.
func (e *SandboxExecutor) Execute(ctx context.Context, ec ExecContext) (*Result, error) {
	return runProcess(ctx, e.command, filterEnv(os.Environ(), e.allowedEnv), ec)
}

// runProcess is the shared process dispatch path. env == nil inherits the
// parent environment; an empty slice scrubs it entirely.
func runProcess(ctx context.Context, command, env []string, ec ExecContext) (*Result, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("executor has no command configured")
	}

	payload, err := json.Marshal(ec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution context: %w", err)
	}

	args := append(append([]string(nil), command[1:]...), ec.Agent)
	cmd := exec.CommandContext(ctx, command[0], args...)
	cmd.Dir = ec.WorkDir
	cmd.Stdin = bytes.NewReader(payload)
	if env != nil {
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	result := &Result{
		Output:   stdout.String(),
		Duration: time.Since(start),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &retry.ExitError{
				Code: exitErr.ExitCode(),
				Err:  fmt.Errorf("agent %s: %s", ec.Agent, firstLine(stderr.String())),
			}
		}
		return result, fmt.Errorf("agent %s failed to run: %w", ec.Agent, runErr)
	}

	result.Success = true
	result.Artifacts = parseArtifactLines(stdout.String())
	return result, nil
}

// filterEnv keeps only whitelisted variables, dropping everything else.
func filterEnv(environ, allowedNames []string) []string {
	allowed := make(map[string]struct{}, len(allowedNames))
	for _, name := range allowedNames {
		allowed[name] = struct{}{}
	}

	filtered := []string{}
	for _, entry := range environ {
		name, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, ok := allowed[name]; ok {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// parseArtifactLines extracts artifact paths from a trailing "artifacts:"
// block in process output. Lines after the marker are paths, one per line.
func parseArtifactLines(output string) []string {
	idx := strings.LastIndex(output, "artifacts:")
	if idx < 0 {
		return nil
	}

	var artifacts []string
	for _, line := range strings.Split(output[idx+len("artifacts:"):], "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			artifacts = append(artifacts, line)
		}
	}
	return artifacts
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
