// Package state holds the persisted run-state record and its durable
// store. The run-loop is the only writer; everything else receives the
// state by reference for one call and returns derived values.
package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the run lifecycle state.
type Status string

const (
	StatusIdle              Status = "IDLE"
	StatusRunning           Status = "RUNNING"
	StatusAwaitingConsensus Status = "AWAITING_CONSENSUS"
	StatusNeedsRevision     Status = "NEEDS_REVISION"
	StatusCompleted         Status = "COMPLETED"
	StatusAborted           Status = "ABORTED"
)

// Terminal reports whether the run has stopped progressing. Aborted runs
// are terminal but can still be resumed explicitly.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// RunState is the single source of truth for one run. It is created on
// start, mutated only by the run-loop, persisted after every transition,
// and never deleted.
type RunState struct {
	RunID  string `json:"run_id"`
	Status Status `json:"status"`

	// CurrentPhase is empty iff Status is IDLE or COMPLETED.
	CurrentPhase string `json:"current_phase,omitempty"`

	// CompletedPhases is ordered and de-duplicated.
	CompletedPhases []string `json:"completed_phases"`

	// PhaseArtifacts maps phase name to produced artifact paths.
	PhaseArtifacts map[string][]string `json:"phase_artifacts"`

	// ConsensusPhase is set iff the run is awaiting consensus.
	ConsensusPhase    string `json:"consensus_phase,omitempty"`
	AwaitingConsensus bool   `json:"awaiting_consensus"`

	IntakeSummary string            `json:"intake_summary,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRunState creates an idle run with a fresh run ID.
func NewRunState(intakeSummary string) *RunState {
	now := time.Now()
	return &RunState{
		RunID:           uuid.New().String(),
		Status:          StatusIdle,
		CompletedPhases: []string{},
		PhaseArtifacts:  map[string][]string{},
		IntakeSummary:   intakeSummary,
		Metadata:        map[string]string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate checks the structural invariants of the record.
func (s *RunState) Validate() error {
	if s.RunID == "" {
		return fmt.Errorf("run state has no run_id")
	}

	phaseless := s.Status == StatusIdle || s.Status == StatusCompleted
	if phaseless && s.CurrentPhase != "" {
		return fmt.Errorf("status %s must not carry a current phase, got %q", s.Status, s.CurrentPhase)
	}
	if !phaseless && s.CurrentPhase == "" {
		return fmt.Errorf("status %s requires a current phase", s.Status)
	}

	awaiting := s.Status == StatusAwaitingConsensus && s.ConsensusPhase != ""
	if s.AwaitingConsensus != awaiting {
		return fmt.Errorf("awaiting_consensus=%t inconsistent with status=%s consensus_phase=%q",
			s.AwaitingConsensus, s.Status, s.ConsensusPhase)
	}

	return nil
}

// MarkPhaseCompleted appends the phase to the ordered completed list,
// suppressing duplicates from re-runs.
func (s *RunState) MarkPhaseCompleted(phase string) {
	for _, p := range s.CompletedPhases {
		if p == phase {
			return
		}
	}
	s.CompletedPhases = append(s.CompletedPhases, phase)
}

// RecordArtifacts stores the artifact paths a phase attempt produced.
// Re-running a phase replaces its artifact list with the newest attempt.
func (s *RunState) RecordArtifacts(phase string, paths []string) {
	if s.PhaseArtifacts == nil {
		s.PhaseArtifacts = map[string][]string{}
	}
	s.PhaseArtifacts[phase] = append([]string(nil), paths...)
}

// Clone returns a deep copy so read-only callers can never mutate the
// run-loop's copy.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	out := *s
	out.CompletedPhases = append([]string(nil), s.CompletedPhases...)
	out.PhaseArtifacts = make(map[string][]string, len(s.PhaseArtifacts))
	for k, v := range s.PhaseArtifacts {
		out.PhaseArtifacts[k] = append([]string(nil), v...)
	}
	out.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		out.Metadata[k] = v
	}
	return &out
}
