// Package consensus builds approval-request documents, records human
// decisions, and emits non-destructive rollback advisories. All documents
// are append-only, keyed by timestamp, and never overwritten.
package consensus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/phaserun/internal/agent"
	"github.com/fyrsmithlabs/phaserun/internal/artifact"
	"github.com/fyrsmithlabs/phaserun/internal/governance"
)

// ReviewerChecklist is the fixed checklist included with every request.
var ReviewerChecklist = []string{
	"All expected artifacts are present and non-empty",
	"Per-unit outcomes match the work actually performed",
	"Validation misses are understood and acceptable, or a revision is requested",
	"Quality-gate failures have been reviewed",
	"Downstream phases can safely consume this phase's artifact bundle",
}

// Request is the document a reviewer approves or rejects.
type Request struct {
	RunID     string    `json:"run_id"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`

	// Status summarizes the phase outcome for the reviewer.
	Status string `json:"status"`

	Units      []*agent.Outcome           `json:"units"`
	Validation *artifact.ValidationResult `json:"validation,omitempty"`
	Gates      []governance.GateResult    `json:"gates,omitempty"`
	BundleRef  string                     `json:"bundle_ref,omitempty"`
	Checklist  []string                   `json:"checklist"`
}

// Decision is the immutable record of one consensus input.
type Decision struct {
	RunID     string    `json:"run_id"`
	Phase     string    `json:"phase"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// RollbackAdvisory recommends manual reversal of a phase's effects. It
// never deletes artifacts or touches version control.
type RollbackAdvisory struct {
	RunID     string    `json:"run_id"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"created_at"`

	// Artifacts enumerates what the phase produced.
	Artifacts []string `json:"artifacts"`

	Recommendation string `json:"recommendation"`
}

// Manager writes consensus documents under a run's state directory.
type Manager struct {
	dir    string
	logger *zap.Logger
}

// NewManager creates a manager writing under dir.
func NewManager(dir string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{dir: dir, logger: logger}
}

// BuildRequest assembles the approval-request document for a phase attempt.
func BuildRequest(runID, phase string, units []*agent.Outcome, validation *artifact.ValidationResult, gates []governance.GateResult, bundleRef string) *Request {
	status := "succeeded"
	for _, u := range units {
		if !u.Success {
			status = "failed"
			break
		}
	}
	if validation != nil && status == "succeeded" {
		switch validation.Status {
		case artifact.StatusPartial:
			status = "partially validated"
		case artifact.StatusFail:
			status = "validation failed"
		}
	}

	return &Request{
		RunID:      runID,
		Phase:      phase,
		CreatedAt:  time.Now(),
		Status:     status,
		Units:      units,
		Validation: validation,
		Gates:      gates,
		BundleRef:  bundleRef,
		Checklist:  ReviewerChecklist,
	}
}

// WriteRequest persists the request and returns its path.
func (m *Manager) WriteRequest(req *Request) (string, error) {
	path, err := m.writeDoc("consensus-request", req.Phase, req.CreatedAt, req)
	if err != nil {
		return "", err
	}
	m.logger.Info("wrote consensus request",
		zap.String("phase", req.Phase),
		zap.String("status", req.Status),
		zap.String("path", path),
	)
	return path, nil
}

// RecordDecision persists an immutable decision document.
func (m *Manager) RecordDecision(runID, phase string, approved bool, reason string) (*Decision, error) {
	decision := &Decision{
		RunID:     runID,
		Phase:     phase,
		Approved:  approved,
		Reason:    reason,
		DecidedAt: time.Now(),
	}
	if _, err := m.writeDoc("consensus-decision", phase, decision.DecidedAt, decision); err != nil {
		return nil, err
	}
	return decision, nil
}

// WriteRollbackAdvisory persists an advisory for the phase's artifacts and
// returns its path. The advisory is informational only.
func (m *Manager) WriteRollbackAdvisory(runID, phase string, artifacts []string) (string, error) {
	advisory := &RollbackAdvisory{
		RunID:     runID,
		Phase:     phase,
		CreatedAt: time.Now(),
		Artifacts: append([]string(nil), artifacts...),
		Recommendation: fmt.Sprintf(
			"Phase %q was rejected. Manually review and reverse the listed artifacts as needed; "+
				"no files were deleted and version-control history is untouched. "+
				"The run remains positioned on this phase and can be safely re-executed.", phase),
	}
	return m.writeDoc("rollback-advisory", phase, advisory.CreatedAt, advisory)
}

// writeDoc writes a timestamp-keyed JSON document, refusing to overwrite.
func (m *Manager) writeDoc(kind, phase string, ts time.Time, doc any) (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create consensus directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s-%s.json", kind, phase, ts.UTC().Format("20060102T150405.000000"))
	path := filepath.Join(m.dir, name)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", kind, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", kind, err)
	}
	return path, nil
}
