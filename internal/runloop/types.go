// Package runloop implements the phase run-loop state machine: the
// top-level controller that owns run state, drives phase-by-phase
// execution, gates advancement behind validation or human consensus, and
// persists a resumable record after every transition.
package runloop

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/phaserun/internal/agent"
	"github.com/fyrsmithlabs/phaserun/internal/artifact"
	"github.com/fyrsmithlabs/phaserun/internal/governance"
	"github.com/fyrsmithlabs/phaserun/internal/state"
)

// PhaseOutcome aggregates one phase execution attempt. The outcome list
// always has one entry per scheduled unit, specialists included, in
// schedule order.
type PhaseOutcome struct {
	Phase   string `json:"phase"`
	Success bool   `json:"success"`

	Outcomes   []*agent.Outcome           `json:"outcomes"`
	Validation *artifact.ValidationResult `json:"validation,omitempty"`
	Gates      []governance.GateResult    `json:"gates,omitempty"`

	// Artifacts is the de-duplicated union of artifact paths the phase's
	// units produced. Recorded on the run state when the attempt's
	// transition is applied.
	Artifacts []string `json:"artifacts,omitempty"`

	RequiresConsensus  bool `json:"requires_consensus"`
	ConsensusRequested bool `json:"consensus_requested"`

	BundleRef   string    `json:"bundle_ref,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// NextPhaseOptions carries per-call overrides for phase execution.
type NextPhaseOptions struct {
	// ForceParallel runs the phase's units in parallel even when the
	// phase is not declared parallel.
	ForceParallel bool

	// MaxWorkers overrides the configured worker limit when positive.
	MaxWorkers int

	// Timeout overrides the per-dispatch timeout when positive.
	Timeout time.Duration
}

// BudgetGuard is the external budget collaborator. A returned error is
// fatal for the run.
type BudgetGuard interface {
	Check(ctx context.Context, s *state.RunState) error
}
