package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WriteReport persists a human-readable validation report for one phase
// attempt and records its path on the result. Reports are keyed by
// timestamp so re-running a phase never overwrites an earlier attempt.
func WriteReport(dir, phase string, result *ValidationResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("validation-%s-%s.txt", phase, result.CheckedAt.UTC().Format("20060102T150405.000"))
	path := filepath.Join(dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "Artifact validation report\n")
	fmt.Fprintf(&b, "Phase:   %s\n", phase)
	fmt.Fprintf(&b, "Checked: %s\n", result.CheckedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Status:  %s\n\n", result.Status)

	fmt.Fprintf(&b, "Required patterns (%d):\n", len(result.Required))
	for _, p := range result.Required {
		marker := "ok"
		for _, m := range result.Missing {
			if m == p {
				marker = "MISSING"
				break
			}
		}
		fmt.Fprintf(&b, "  [%s] %s\n", marker, p)
	}

	fmt.Fprintf(&b, "\nFound files (%d, non-empty only):\n", len(result.Found))
	for _, f := range result.Found {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	if len(result.Found) == 0 {
		b.WriteString("  (none)\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write validation report: %w", err)
	}

	result.ReportPath = path
	return nil
}
