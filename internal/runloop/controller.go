package runloop

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/phaserun/internal/agent"
	"github.com/fyrsmithlabs/phaserun/internal/artifact"
	"github.com/fyrsmithlabs/phaserun/internal/config"
	"github.com/fyrsmithlabs/phaserun/internal/consensus"
	"github.com/fyrsmithlabs/phaserun/internal/governance"
	"github.com/fyrsmithlabs/phaserun/internal/pool"
	"github.com/fyrsmithlabs/phaserun/internal/state"
)

const instrumentationName = "github.com/fyrsmithlabs/phaserun/internal/runloop"

// Controller drives one run through the configured workflow. All methods
// are safe for concurrent use; the controller serializes transitions and
// persists the run state after every one.
type Controller struct {
	cfg    *config.Config
	store  *state.FileStore
	logger *zap.Logger

	budget BudgetGuard
	gates  *governance.GateSet
	rules  []SpecialistRule

	// executors caches one resolved executor per declared kind.
	executors map[agent.Kind]agent.Executor

	// Telemetry
	tracer           trace.Tracer
	meter            metric.Meter
	phaseCounter     metric.Int64Counter
	dispatchCounter  metric.Int64Counter
	consensusCounter metric.Int64Counter

	mu  sync.Mutex
	run *state.RunState
}

// ControllerOption customizes controller construction.
type ControllerOption func(*Controller)

// WithBudgetGuard installs an external budget check evaluated before every
// phase execution. A guard failure aborts the run.
func WithBudgetGuard(g BudgetGuard) ControllerOption {
	return func(c *Controller) { c.budget = g }
}

// WithGates installs quality gates evaluated after every phase execution.
// Gate results are advisory: they are surfaced in the phase outcome and
// any consensus request, but never block advancement on their own.
func WithGates(gs *governance.GateSet) ControllerOption {
	return func(c *Controller) { c.gates = gs }
}

// WithSpecialistRules overrides the default specialist roster rules.
func WithSpecialistRules(rules []SpecialistRule) ControllerOption {
	return func(c *Controller) { c.rules = rules }
}

// WithExecutor pre-installs an executor for a kind, bypassing resolution
// from configuration.
func WithExecutor(kind agent.Kind, ex agent.Executor) ControllerOption {
	return func(c *Controller) { c.executors[kind] = ex }
}

// NewController creates a controller for the given configuration. No run
// is attached yet; call Start for a fresh run or Attach for an existing one.
func NewController(cfg *config.Config, store *state.FileStore, logger *zap.Logger, opts ...ControllerOption) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is required", ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: state store is required", ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		rules:     DefaultSpecialistRules(),
		executors: make(map[agent.Kind]agent.Executor),
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.initMetrics()

	return c, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (c *Controller) initMetrics() {
	var err error

	c.phaseCounter, err = c.meter.Int64Counter(
		"phaserun.phases_total",
		metric.WithDescription("Total number of phase executions"),
		metric.WithUnit("{phase}"),
	)
	if err != nil {
		c.logger.Warn("failed to create phase counter", zap.Error(err))
	}

	c.dispatchCounter, err = c.meter.Int64Counter(
		"phaserun.dispatches_total",
		metric.WithDescription("Total number of unit dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		c.logger.Warn("failed to create dispatch counter", zap.Error(err))
	}

	c.consensusCounter, err = c.meter.Int64Counter(
		"phaserun.consensus_decisions_total",
		metric.WithDescription("Total number of consensus decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		c.logger.Warn("failed to create consensus counter", zap.Error(err))
	}
}

// Start creates a fresh run and moves it to RUNNING on the first enabled
// phase, or on fromPhase when given. The intake summary is recorded on
// the run and made available to every dispatched unit.
func (c *Controller) Start(ctx context.Context, intake, fromPhase string) (*state.RunState, error) {
	ctx, span := c.tracer.Start(ctx, "runloop.start")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil {
		return nil, fmt.Errorf("%w: controller already has run %s attached", ErrInvalidState, c.run.RunID)
	}

	first, err := c.selectStartPhase(fromPhase)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	run := state.NewRunState(intake)
	run.Status = state.StatusRunning
	run.CurrentPhase = first

	span.SetAttributes(
		attribute.String("run_id", run.RunID),
		attribute.String("phase", first),
	)

	if err := c.commit(ctx, run, "run started on phase %s", first); err != nil {
		span.RecordError(err)
		return nil, err
	}

	c.logger.Info("run started",
		zap.String("run_id", run.RunID),
		zap.String("phase", first),
	)
	return run.Clone(), nil
}

// selectStartPhase resolves the opening phase for a new run.
func (c *Controller) selectStartPhase(fromPhase string) (string, error) {
	if fromPhase != "" {
		p := c.cfg.Phase(fromPhase)
		if p == nil {
			return "", fmt.Errorf("%w: unknown phase %q", ErrConfiguration, fromPhase)
		}
		if !p.Enabled() {
			return "", fmt.Errorf("%w: phase %q is disabled", ErrConfiguration, fromPhase)
		}
		return p.Name, nil
	}

	enabled := c.cfg.EnabledPhases()
	if len(enabled) == 0 {
		return "", fmt.Errorf("%w: workflow has no enabled phases", ErrConfiguration)
	}
	return enabled[0].Name, nil
}

// Attach loads a previously persisted run so it can be inspected, resumed,
// or advanced.
func (c *Controller) Attach(ctx context.Context, runID string) (*state.RunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil {
		return nil, fmt.Errorf("%w: controller already has run %s attached", ErrInvalidState, c.run.RunID)
	}

	run, err := c.store.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	c.run = run
	return run.Clone(), nil
}

// NextPhase executes every unit of the current phase and applies the
// resulting transition: advancement, a consensus request, or a revision
// hold. The run must be RUNNING.
func (c *Controller) NextPhase(ctx context.Context, opts NextPhaseOptions) (*PhaseOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "runloop.next_phase")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil, fmt.Errorf("%w: no run attached", ErrInvalidState)
	}
	if c.run.Status != state.StatusRunning {
		return nil, fmt.Errorf("%w: next-phase requires a RUNNING run, status is %s", ErrInvalidState, c.run.Status)
	}

	span.SetAttributes(
		attribute.String("run_id", c.run.RunID),
		attribute.String("phase", c.run.CurrentPhase),
	)

	if err := c.checkBudget(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	phase := c.cfg.Phase(c.run.CurrentPhase)
	if phase == nil || !phase.Enabled() {
		return nil, fmt.Errorf("%w: current phase %q is not an enabled workflow phase", ErrConfiguration, c.run.CurrentPhase)
	}

	outcome, err := c.executePhase(ctx, phase, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if c.phaseCounter != nil {
		c.phaseCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("phase", phase.Name),
			attribute.Bool("success", outcome.Success),
		))
	}

	if err := c.applyPhaseResult(ctx, phase, outcome); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return outcome, nil
}

// checkBudget consults the external guard. A guard failure is fatal: the
// run is aborted in place so it can be resumed once budget is restored.
func (c *Controller) checkBudget(ctx context.Context) error {
	if c.budget == nil {
		return nil
	}
	err := c.budget.Check(ctx, c.run.Clone())
	if err == nil {
		return nil
	}

	next := c.run.Clone()
	next.Status = state.StatusAborted
	next.AwaitingConsensus = false
	next.ConsensusPhase = ""
	if saveErr := c.commit(ctx, next, "run aborted by budget guard: %v", err); saveErr != nil {
		c.logger.Error("failed to persist budget abort", zap.Error(saveErr))
	}
	c.logger.Warn("budget guard aborted run",
		zap.String("run_id", c.run.RunID),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %v", ErrBudgetExceeded, err)
}

// executePhase dispatches the phase roster and collects validation, report,
// bundle and gate results. It does not mutate run status; that is the
// caller's transition to apply.
func (c *Controller) executePhase(ctx context.Context, phase *config.PhaseDefinition, opts NextPhaseOptions) (*PhaseOutcome, error) {
	roster := applySpecialists(phase.Agents, c.run.IntakeSummary, c.cfg.Governance, c.rules)

	ex, err := c.executorFor(phase)
	if err != nil {
		return nil, err
	}

	timeout := c.cfg.Execution.DefaultTimeout.Duration()
	if phase.Timeout.Duration() > 0 {
		timeout = phase.Timeout.Duration()
	}
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	runDir := c.store.RunDir(c.run.RunID)
	dispatcher := agent.NewDispatcher(ex, c.cfg.Retry, timeout, filepath.Join(runDir, "transcripts"), c.logger)

	units := make([]agent.ExecContext, len(roster))
	prior := c.run.Clone().PhaseArtifacts
	for i, name := range roster {
		units[i] = agent.ExecContext{
			RunID:          c.run.RunID,
			Phase:          phase.Name,
			Agent:          name,
			Intake:         c.run.IntakeSummary,
			WorkDir:        c.cfg.Execution.WorkDir,
			PriorArtifacts: prior,
		}
	}

	c.appendLog("phase %s dispatching %d unit(s)", phase.Name, len(units))

	coord := pool.NewCoordinator(c.cfg.Execution.MaxWorkers, c.logger)
	parallel := phase.Parallel || opts.ForceParallel
	outcomes := coord.Run(ctx, units, parallel, opts.MaxWorkers, func(ctx context.Context, ec agent.ExecContext) *agent.Outcome {
		if c.dispatchCounter != nil {
			c.dispatchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", ec.Phase)))
		}
		return dispatcher.Dispatch(ctx, ec, 0)
	})

	success := true
	var produced []string
	for _, o := range outcomes {
		if !o.Success {
			success = false
		}
		produced = append(produced, o.Artifacts...)
	}
	// Produced artifacts are staged on the outcome; the run state is only
	// mutated once the attempt's transition is persisted.
	produced = dedupe(produced)

	validation, err := artifact.NewValidator(c.cfg.Execution.WorkDir, c.logger).Validate(phase.ArtifactsRequired)
	if err != nil {
		return nil, fmt.Errorf("artifact validation for phase %s: %w", phase.Name, err)
	}
	if !validation.Satisfied() {
		success = false
	}
	if err := artifact.WriteReport(filepath.Join(runDir, "reports"), phase.Name, validation); err != nil {
		c.logger.Warn("failed to write validation report", zap.Error(err))
	}

	bundleRef, err := artifact.WriteBundle(filepath.Join(runDir, "bundles"), &artifact.Manifest{
		Phase:     phase.Name,
		RunID:     c.run.RunID,
		CreatedAt: time.Now(),
		Artifacts: produced,
		Metrics: map[string]string{
			"units":      fmt.Sprintf("%d", len(outcomes)),
			"validation": string(validation.Status),
		},
	})
	if err != nil {
		c.logger.Warn("failed to write artifact bundle", zap.Error(err))
	}

	var gateResults []governance.GateResult
	if c.gates != nil {
		snapshot := c.run.Clone()
		snapshot.RecordArtifacts(phase.Name, produced)
		gateResults, err = c.gates.Evaluate(ctx, snapshot, phase.Name)
		if err != nil {
			c.logger.Warn("gate evaluation failed", zap.String("phase", phase.Name), zap.Error(err))
		}
		for _, g := range gateResults {
			if !g.Passed {
				c.logger.Warn("quality gate failed",
					zap.String("phase", phase.Name),
					zap.String("gate", g.Name),
					zap.String("detail", g.Detail),
				)
			}
		}
	}

	return &PhaseOutcome{
		Phase:             phase.Name,
		Success:           success,
		Outcomes:          outcomes,
		Validation:        validation,
		Gates:             gateResults,
		Artifacts:         produced,
		RequiresConsensus: phase.RequiresConsensus,
		BundleRef:         bundleRef,
		CompletedAt:       time.Now(),
	}, nil
}

// applyPhaseResult performs the post-execution transition. The transition
// is built on a copy and only swapped in after it persists, so a failure
// anywhere in this path leaves the attached run untouched.
func (c *Controller) applyPhaseResult(ctx context.Context, phase *config.PhaseDefinition, outcome *PhaseOutcome) error {
	next := c.run.Clone()
	next.RecordArtifacts(phase.Name, outcome.Artifacts)

	var entry string
	switch {
	// A consensus-gated phase always halts for review, even when it
	// failed: the reviewer sees the failure and decides.
	case phase.RequiresConsensus:
		req := consensus.BuildRequest(next.RunID, phase.Name, outcome.Outcomes, outcome.Validation, outcome.Gates, outcome.BundleRef)
		if _, err := c.consensusManager().WriteRequest(req); err != nil {
			return fmt.Errorf("failed to write consensus request: %w", err)
		}
		outcome.ConsensusRequested = true
		next.Status = state.StatusAwaitingConsensus
		next.ConsensusPhase = phase.Name
		next.AwaitingConsensus = true
		entry = fmt.Sprintf("phase %s awaiting consensus", phase.Name)

	case !outcome.Success:
		next.Status = state.StatusNeedsRevision
		entry = fmt.Sprintf("phase %s needs revision", phase.Name)

	default:
		entry = c.completeAndAdvance(next, phase.Name)
	}

	return c.commit(ctx, next, "%s", entry)
}

// completeAndAdvance marks the phase done on the given state and moves to
// the next enabled phase, or finishes the run when none remains. Returns
// the run-log entry describing the transition.
func (c *Controller) completeAndAdvance(run *state.RunState, phase string) string {
	run.MarkPhaseCompleted(phase)
	run.AwaitingConsensus = false
	run.ConsensusPhase = ""

	if next := c.nextEnabledPhase(phase); next != "" {
		run.CurrentPhase = next
		run.Status = state.StatusRunning
		return fmt.Sprintf("phase %s completed, advancing to %s", phase, next)
	}

	run.CurrentPhase = ""
	run.Status = state.StatusCompleted
	return fmt.Sprintf("phase %s completed, run finished", phase)
}

// nextEnabledPhase returns the enabled phase after the given one in
// workflow order, or empty when the workflow is exhausted.
func (c *Controller) nextEnabledPhase(after string) string {
	enabled := c.cfg.EnabledPhases()
	for i, p := range enabled {
		if p.Name == after && i+1 < len(enabled) {
			return enabled[i+1].Name
		}
	}
	return ""
}

// ApproveConsensus records an approval, completes the held phase, and
// advances the run.
func (c *Controller) ApproveConsensus(ctx context.Context, reason string) (*state.RunState, error) {
	ctx, span := c.tracer.Start(ctx, "runloop.approve_consensus")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAwaitingConsensus(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	phase := c.run.ConsensusPhase

	if _, err := c.consensusManager().RecordDecision(c.run.RunID, phase, true, reason); err != nil {
		return nil, err
	}
	if c.consensusCounter != nil {
		c.consensusCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("approved", true)))
	}

	next := c.run.Clone()
	entry := c.completeAndAdvance(next, phase)
	if err := c.commit(ctx, next, "consensus approved for phase %s, %s", phase, entry); err != nil {
		return nil, err
	}

	c.logger.Info("consensus approved",
		zap.String("run_id", c.run.RunID),
		zap.String("phase", phase),
	)
	return c.run.Clone(), nil
}

// RejectConsensus records a rejection, emits a rollback advisory for the
// phase's artifacts, and holds the run for revision. Nothing is deleted.
func (c *Controller) RejectConsensus(ctx context.Context, reason string) (*state.RunState, error) {
	ctx, span := c.tracer.Start(ctx, "runloop.reject_consensus")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAwaitingConsensus(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	phase := c.run.ConsensusPhase

	if _, err := c.consensusManager().RecordDecision(c.run.RunID, phase, false, reason); err != nil {
		return nil, err
	}
	if c.consensusCounter != nil {
		c.consensusCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("approved", false)))
	}

	advisory, err := c.consensusManager().WriteRollbackAdvisory(c.run.RunID, phase, c.run.PhaseArtifacts[phase])
	if err != nil {
		c.logger.Warn("failed to write rollback advisory", zap.Error(err))
	}

	next := c.run.Clone()
	next.Status = state.StatusNeedsRevision
	next.CurrentPhase = phase
	next.AwaitingConsensus = false
	next.ConsensusPhase = ""

	if err := c.commit(ctx, next, "consensus rejected for phase %s: %s", phase, reason); err != nil {
		return nil, err
	}

	c.logger.Info("consensus rejected",
		zap.String("run_id", c.run.RunID),
		zap.String("phase", phase),
		zap.String("advisory", advisory),
	)
	return c.run.Clone(), nil
}

func (c *Controller) requireAwaitingConsensus() error {
	if c.run == nil {
		return fmt.Errorf("%w: no run attached", ErrInvalidState)
	}
	if c.run.Status != state.StatusAwaitingConsensus || c.run.ConsensusPhase == "" {
		return fmt.Errorf("%w: run is not awaiting consensus, status is %s", ErrInvalidState, c.run.Status)
	}
	return nil
}

// AbortRun halts an active run. The current phase is retained so the run
// can be resumed later.
func (c *Controller) AbortRun(ctx context.Context) (*state.RunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil, fmt.Errorf("%w: no run attached", ErrInvalidState)
	}
	if c.run.Status == state.StatusIdle || c.run.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot abort a run with status %s", ErrInvalidState, c.run.Status)
	}

	next := c.run.Clone()
	next.Status = state.StatusAborted
	next.AwaitingConsensus = false
	next.ConsensusPhase = ""

	if err := c.commit(ctx, next, "run aborted on phase %s", next.CurrentPhase); err != nil {
		return nil, err
	}
	return c.run.Clone(), nil
}

// ResumeRun returns an aborted or revision-held run to RUNNING on its
// current phase.
func (c *Controller) ResumeRun(ctx context.Context) (*state.RunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil, fmt.Errorf("%w: no run attached", ErrInvalidState)
	}
	switch c.run.Status {
	case state.StatusAborted, state.StatusNeedsRevision:
	default:
		return nil, fmt.Errorf("%w: cannot resume a run with status %s", ErrInvalidState, c.run.Status)
	}

	next := c.run.Clone()
	next.Status = state.StatusRunning
	if err := c.commit(ctx, next, "run resumed on phase %s", next.CurrentPhase); err != nil {
		return nil, err
	}
	return c.run.Clone(), nil
}

// JumpToPhase repositions the run on any enabled phase and returns it to
// RUNNING, clearing any pending consensus hold. Completed-phase history is
// preserved; re-running a phase replaces its recorded artifacts.
func (c *Controller) JumpToPhase(ctx context.Context, phase string) (*state.RunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil, fmt.Errorf("%w: no run attached", ErrInvalidState)
	}
	p := c.cfg.Phase(phase)
	if p == nil {
		return nil, fmt.Errorf("%w: unknown phase %q", ErrConfiguration, phase)
	}
	if !p.Enabled() {
		return nil, fmt.Errorf("%w: phase %q is disabled", ErrConfiguration, phase)
	}

	next := c.run.Clone()
	next.Status = state.StatusRunning
	next.CurrentPhase = p.Name
	next.AwaitingConsensus = false
	next.ConsensusPhase = ""

	if err := c.commit(ctx, next, "run repositioned to phase %s", p.Name); err != nil {
		return nil, err
	}
	return c.run.Clone(), nil
}

// Status returns a deep copy of the current run state, or nil when no run
// is attached. Reading status never mutates or persists anything.
func (c *Controller) Status() *state.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run.Clone()
}

// LogTail returns the newest n run-log entries, oldest first.
func (c *Controller) LogTail(n int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run == nil {
		return nil, fmt.Errorf("%w: no run attached", ErrInvalidState)
	}
	return c.store.LogTail(c.run.RunID, n)
}

// executorFor resolves and caches the executor for a phase's declared kind.
func (c *Controller) executorFor(phase *config.PhaseDefinition) (agent.Executor, error) {
	kind := agent.Kind(phase.Executor)
	if kind == "" {
		kind = agent.KindSubprocess
	}
	if ex, ok := c.executors[kind]; ok {
		return ex, nil
	}

	ex, err := agent.SelectExecutor(kind, agent.ExecutorOptions{
		Command:    c.cfg.Execution.Command,
		AllowedEnv: c.cfg.Execution.AllowedEnv,
		APIKey:     c.cfg.Execution.APIKey.Value(),
		BaseURL:    c.cfg.Execution.BaseURL,
		Model:      c.cfg.Execution.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: phase %s: %v", ErrConfiguration, phase.Name, err)
	}
	c.executors[kind] = ex
	return ex, nil
}

func (c *Controller) consensusManager() *consensus.Manager {
	return consensus.NewManager(filepath.Join(c.store.RunDir(c.run.RunID), "consensus"), c.logger)
}

// commit persists the candidate state and swaps it in as the attached
// run, then appends a run-log entry. The attached run is never touched
// when persistence fails, so a failed command leaves no mutation behind.
func (c *Controller) commit(ctx context.Context, next *state.RunState, format string, args ...any) error {
	if err := c.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to persist run state: %w", err)
	}
	c.run = next
	c.appendLog(format, args...)
	return nil
}

// appendLog records a run-log line, tolerating log write failures.
func (c *Controller) appendLog(format string, args ...any) {
	if err := c.store.AppendLog(c.run.RunID, fmt.Sprintf(format, args...)); err != nil {
		c.logger.Warn("failed to append run log", zap.Error(err))
	}
}

// dedupe preserves first-seen order.
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
