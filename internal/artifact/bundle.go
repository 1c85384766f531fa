package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manifest describes a phase's artifact bundle for downstream handoff.
type Manifest struct {
	Phase     string    `json:"phase"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Artifacts []string  `json:"artifacts"`

	// Metrics is a small digest of the phase execution: unit counts,
	// durations, validation status.
	Metrics map[string]string `json:"metrics,omitempty"`
}

// WriteBundle writes a bundle manifest for the phase under dir and returns
// the manifest path. Bundles are keyed by timestamp; re-running a phase
// produces a new bundle rather than overwriting the previous one.
func WriteBundle(dir string, manifest *Manifest) (string, error) {
	if manifest.Phase == "" {
		return "", fmt.Errorf("bundle manifest requires a phase name")
	}
	if manifest.CreatedAt.IsZero() {
		manifest.CreatedAt = time.Now()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bundle directory: %w", err)
	}

	name := fmt.Sprintf("bundle-%s-%s.json", manifest.Phase, manifest.CreatedAt.UTC().Format("20060102T150405.000"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal bundle manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write bundle manifest: %w", err)
	}

	return path, nil
}
