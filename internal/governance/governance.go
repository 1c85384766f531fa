// Package governance evaluates quality gates over a run. Gate results
// inform the consensus presentation; they never drive the state machine.
package governance

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/phaserun/internal/state"
)

// GateResult is one pass/fail quality-gate verdict.
type GateResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Evaluator produces gate results for a phase of a run.
type Evaluator interface {
	Evaluate(ctx context.Context, s *state.RunState, phase string) ([]GateResult, error)
}

// Config carries governance flags consulted by specialist detection and
// by the gates themselves.
type Config struct {
	// Flags are named governance toggles, e.g. "security_review": true.
	Flags map[string]bool `json:"flags" koanf:"flags"`
}

// Flag returns the named flag, defaulting to false.
func (c Config) Flag(name string) bool {
	return c.Flags[name]
}

// Gate checks one condition against the run.
type Gate interface {
	// Name returns the gate identifier.
	Name() string

	// Check evaluates the gate for the phase.
	Check(ctx context.Context, s *state.RunState, phase string) (GateResult, error)
}

// GateSet evaluates a fixed list of gates in order.
type GateSet struct {
	gates []Gate
}

// NewGateSet creates an evaluator over the given gates.
func NewGateSet(gates ...Gate) *GateSet {
	return &GateSet{gates: gates}
}

// Evaluate runs every gate, collecting all results.
func (g *GateSet) Evaluate(ctx context.Context, s *state.RunState, phase string) ([]GateResult, error) {
	results := make([]GateResult, 0, len(g.gates))
	for _, gate := range g.gates {
		result, err := gate.Check(ctx, s, phase)
		if err != nil {
			return nil, fmt.Errorf("gate %s check failed: %w", gate.Name(), err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ArtifactPresenceGate passes when the phase recorded at least one
// artifact path.
type ArtifactPresenceGate struct{}

// Name returns the gate identifier.
func (g *ArtifactPresenceGate) Name() string {
	return "artifact-presence"
}

// Check evaluates artifact presence for the phase.
func (g *ArtifactPresenceGate) Check(ctx context.Context, s *state.RunState, phase string) (GateResult, error) {
	artifacts := s.PhaseArtifacts[phase]
	if len(artifacts) == 0 {
		return GateResult{
			Name:   g.Name(),
			Detail: fmt.Sprintf("phase %s recorded no artifacts", phase),
		}, nil
	}
	return GateResult{
		Name:   g.Name(),
		Passed: true,
		Detail: fmt.Sprintf("%d artifacts recorded", len(artifacts)),
	}, nil
}

// ProgressGate fails when the evaluated phase is already marked completed,
// flagging a re-execution for the reviewer.
type ProgressGate struct{}

// Name returns the gate identifier.
func (g *ProgressGate) Name() string {
	return "run-progress"
}

// Check evaluates run progress.
func (g *ProgressGate) Check(ctx context.Context, s *state.RunState, phase string) (GateResult, error) {
	for _, done := range s.CompletedPhases {
		if done == phase {
			return GateResult{
				Name:   g.Name(),
				Detail: fmt.Sprintf("phase %s is being re-executed after completion", phase),
			}, nil
		}
	}
	return GateResult{Name: g.Name(), Passed: true}, nil
}

// IntakeKeywordGate fails when the intake mentions any flagged keyword,
// surfacing it to reviewers.
type IntakeKeywordGate struct {
	Keywords []string
}

// Name returns the gate identifier.
func (g *IntakeKeywordGate) Name() string {
	return "intake-keywords"
}

// Check scans the intake for flagged keywords (case-insensitive).
func (g *IntakeKeywordGate) Check(ctx context.Context, s *state.RunState, phase string) (GateResult, error) {
	intake := strings.ToLower(s.IntakeSummary)
	for _, kw := range g.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(intake, strings.ToLower(kw)) {
			return GateResult{
				Name:   g.Name(),
				Detail: fmt.Sprintf("intake mentions %q; reviewer attention required", kw),
			}, nil
		}
	}
	return GateResult{Name: g.Name(), Passed: true}, nil
}
