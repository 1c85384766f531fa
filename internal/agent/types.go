// Package agent dispatches individual work units through a pluggable
// executor interface, wrapping each call with the reliability layer and
// recording a per-unit transcript for audit.
package agent

import (
	"time"
)

// ExecContext is the phase-scoped context handed to one work unit.
type ExecContext struct {
	RunID string `json:"run_id"`
	Phase string `json:"phase"`
	Agent string `json:"agent"`

	// Intake is the run's intake summary, available to every unit.
	Intake string `json:"intake,omitempty"`

	// WorkDir is the directory the unit operates in.
	WorkDir string `json:"work_dir"`

	// PriorArtifacts maps completed phase names to their artifact paths.
	PriorArtifacts map[string][]string `json:"prior_artifacts,omitempty"`
}

// Result is the raw return of one executor call.
type Result struct {
	Success   bool          `json:"success"`
	Output    string        `json:"output,omitempty"`
	Artifacts []string      `json:"artifacts,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
}

// Signal classifies how a dispatched unit ended.
type Signal string

const (
	SignalOK      Signal = "ok"
	SignalError   Signal = "error"
	SignalTimeout Signal = "timeout"
	SignalPanic   Signal = "panic"
)

// Outcome records one dispatched unit for one phase attempt. It is created
// once per dispatch and never mutated afterwards.
type Outcome struct {
	Agent     string        `json:"agent"`
	Success   bool          `json:"success"`
	Artifacts []string      `json:"artifacts,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
	Signal    Signal        `json:"signal"`
	Duration  time.Duration `json:"duration"`
}
