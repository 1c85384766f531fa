// Package artifact validates produced artifacts against a phase's declared
// output contract and packages them into handoff bundles.
package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// ValidationStatus is the aggregate verdict for a phase's artifact contract.
type ValidationStatus string

const (
	// StatusPass means every required pattern matched a non-empty file.
	StatusPass ValidationStatus = "PASS"

	// StatusPartial means some but not all patterns were satisfied.
	StatusPartial ValidationStatus = "PARTIAL"

	// StatusFail means no pattern was satisfied.
	StatusFail ValidationStatus = "FAIL"
)

// ValidationResult captures the outcome of validating one phase attempt.
type ValidationResult struct {
	Status     ValidationStatus `json:"status"`
	Required   []string         `json:"required"`
	Found      []string         `json:"found"`
	Missing    []string         `json:"missing"`
	ReportPath string           `json:"report_path,omitempty"`
	CheckedAt  time.Time        `json:"checked_at"`
}

// Satisfied reports whether the validation allows the phase to count as
// successful. A FAIL downgrades phase success but PARTIAL does not.
func (r *ValidationResult) Satisfied() bool {
	return r.Status == StatusPass || r.Status == StatusPartial
}

// Validator matches required path patterns against a file tree.
type Validator struct {
	root   string
	logger *zap.Logger
}

// NewValidator creates a validator rooted at the given directory.
func NewValidator(root string, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{root: root, logger: logger}
}

// Validate checks each required pattern against the tree. A pattern is
// satisfied only by at least one non-empty matching file. Patterns support
// wildcards including the recursive **.
func (v *Validator) Validate(required []string) (*ValidationResult, error) {
	result := &ValidationResult{
		Status:    StatusPass,
		Required:  append([]string(nil), required...),
		CheckedAt: time.Now(),
	}
	if len(required) == 0 {
		return result, nil
	}

	fsys := os.DirFS(v.root)
	found := make(map[string]struct{})
	satisfied := 0

	for _, pattern := range required {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid artifact pattern %q: %w", pattern, err)
		}

		ok := false
		for _, match := range matches {
			if nonEmptyFile(fsys, match) {
				found[match] = struct{}{}
				ok = true
			}
		}

		if ok {
			satisfied++
		} else {
			result.Missing = append(result.Missing, pattern)
		}
	}

	for path := range found {
		result.Found = append(result.Found, path)
	}
	sort.Strings(result.Found)

	switch {
	case satisfied == len(required):
		result.Status = StatusPass
	case satisfied == 0:
		result.Status = StatusFail
	default:
		result.Status = StatusPartial
	}

	v.logger.Debug("validated artifacts",
		zap.String("status", string(result.Status)),
		zap.Int("required", len(required)),
		zap.Int("found", len(result.Found)),
		zap.Strings("missing", result.Missing),
	)

	return result, nil
}

// nonEmptyFile reports whether path names a regular file with content.
// Empty files do not satisfy a contract pattern.
func nonEmptyFile(fsys fs.FS, path string) bool {
	info, err := fs.Stat(fsys, path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}
