package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/phaserun/internal/retry"
)

// Dispatcher invokes one work unit through an executor, wrapped by the
// reliability layer. Every dispatch, regardless of outcome, yields an
// Outcome and a per-unit transcript; dispatch failures never escape as
// errors.
type Dispatcher struct {
	executor      Executor
	retryCfg      retry.Config
	timeout       time.Duration
	transcriptDir string
	logger        *zap.Logger
}

// NewDispatcher creates a dispatcher. timeout is the phase-default hard
// timeout per dispatch; Dispatch can override it per call.
func NewDispatcher(executor Executor, retryCfg retry.Config, timeout time.Duration, transcriptDir string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		executor:      executor,
		retryCfg:      retryCfg,
		timeout:       timeout,
		transcriptDir: transcriptDir,
		logger:        logger,
	}
}

// Dispatch runs one unit to completion. timeoutOverride replaces the
// phase-default timeout when positive. All failures, including timeouts
// and retry exhaustion, are converted into a failed Outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, ec ExecContext, timeoutOverride time.Duration) *Outcome {
	timeout := d.timeout
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	transcript, err := d.openTranscript(ec)
	if err != nil {
		d.logger.Warn("transcript unavailable, continuing without audit trail",
			zap.String("agent", ec.Agent),
			zap.Error(err),
		)
	}
	if transcript != nil {
		defer transcript.Close()
	}

	start := time.Now()
	var result *Result
	var attemptErrors []string

	dispatchErr := retry.Do(ctx, d.retryCfg, timeout, func(attemptCtx context.Context) error {
		r, execErr := d.executor.Execute(attemptCtx, ec)
		if r != nil {
			result = r
		}
		return execErr
	}, func(a retry.Attempt) {
		if a.Error != "" {
			attemptErrors = append(attemptErrors, fmt.Sprintf("attempt %d: %s", a.Number, a.Error))
		}
		if transcript != nil {
			transcript.append(a)
		}
	})

	outcome := &Outcome{
		Agent:    ec.Agent,
		Duration: time.Since(start),
		Errors:   attemptErrors,
	}

	if dispatchErr != nil {
		outcome.Signal = SignalError
		if errors.Is(dispatchErr, retry.ErrTimeout) || errors.Is(dispatchErr, context.DeadlineExceeded) {
			outcome.Signal = SignalTimeout
		}
		d.logger.Warn("dispatch failed",
			zap.String("phase", ec.Phase),
			zap.String("agent", ec.Agent),
			zap.String("signal", string(outcome.Signal)),
			zap.Error(dispatchErr),
		)
		return outcome
	}

	outcome.Success = true
	outcome.Signal = SignalOK
	if result != nil {
		outcome.Artifacts = result.Artifacts
		outcome.Notes = firstLine(result.Output)
	}

	d.logger.Info("dispatch completed",
		zap.String("phase", ec.Phase),
		zap.String("agent", ec.Agent),
		zap.Duration("duration", outcome.Duration),
		zap.Int("artifacts", len(outcome.Artifacts)),
	)

	return outcome
}

// transcriptFile appends attempt records as JSON lines.
type transcriptFile struct {
	f *os.File
}

func (d *Dispatcher) openTranscript(ec ExecContext) (*transcriptFile, error) {
	if d.transcriptDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(d.transcriptDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}

	name := fmt.Sprintf("transcript-%s-%s-%s.jsonl", ec.Phase, ec.Agent, time.Now().UTC().Format("20060102T150405.000"))
	f, err := os.OpenFile(filepath.Join(d.transcriptDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	return &transcriptFile{f: f}, nil
}

func (t *transcriptFile) append(a retry.Attempt) {
	line, err := json.Marshal(a)
	if err != nil {
		return
	}
	_, _ = t.f.Write(append(line, '\n'))
}

func (t *transcriptFile) Close() error {
	return t.f.Close()
}
