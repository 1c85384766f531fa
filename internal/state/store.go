package state

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned when no persisted state exists for a run ID.
var ErrNotFound = errors.New("run state not found")

// Store persists run state durably. Implementations must make Save atomic:
// a crash mid-write never leaves a partial record behind.
type Store interface {
	// Save persists the state, replacing any previous record for the run.
	Save(ctx context.Context, s *RunState) error

	// Load retrieves the state for a run ID, or ErrNotFound.
	Load(ctx context.Context, runID string) (*RunState, error)

	// AppendLog appends one entry to the run's execution log.
	AppendLog(runID, entry string) error

	// LogTail returns the last n log entries, oldest first.
	LogTail(runID string, n int) ([]string, error)
}

// FileStore keeps each run under <dir>/<run_id>/ with state.json rewritten
// atomically (write to temp, then rename) and run.log appended.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// RunDir returns the directory holding a run's state, logs and documents.
func (fs *FileStore) RunDir(runID string) string {
	return filepath.Join(fs.dir, runID)
}

// Save writes state.json atomically.
func (fs *FileStore) Save(ctx context.Context, s *RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid state: %w", err)
	}

	runDir := fs.RunDir(s.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	tmp, err := os.CreateTemp(runDir, "state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(runDir, "state.json")); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Load reads state.json for the run.
func (fs *FileStore) Load(ctx context.Context, runID string) (*RunState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(fs.RunDir(runID), "state.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse run state: %w", err)
	}
	return &s, nil
}

// AppendLog appends a timestamped entry to run.log.
func (fs *FileStore) AppendLog(runID, entry string) error {
	runDir := fs.RunDir(runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(runDir, "run.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), entry)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

// LogTail returns the last n entries of run.log, oldest first. A missing
// log is an empty tail, not an error.
func (fs *FileStore) LogTail(runID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(filepath.Join(fs.RunDir(runID), "run.log"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
