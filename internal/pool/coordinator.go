// Package pool runs a phase's dispatches either sequentially or under a
// bounded worker limit, isolating every unit failure from its siblings.
package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/phaserun/internal/agent"
)

// DispatchFunc runs one unit to completion and never returns an error;
// failures are carried inside the Outcome.
type DispatchFunc func(context.Context, agent.ExecContext) *agent.Outcome

// Coordinator schedules a phase's dispatches.
type Coordinator struct {
	maxWorkers int
	logger     *zap.Logger
}

// NewCoordinator creates a coordinator with the given default worker limit.
func NewCoordinator(maxWorkers int, logger *zap.Logger) *Coordinator {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{maxWorkers: maxWorkers, logger: logger}
}

// Run executes all units and returns exactly len(units) outcomes, ordered
// to match. Sequential unless parallel is set; when parallel, at most
// min(workers, N) units run concurrently; a workers value of 0 uses the
// coordinator default. All units always run to completion: a sibling's failure,
// timeout, or panic never cancels the rest of the batch.
func (c *Coordinator) Run(ctx context.Context, units []agent.ExecContext, parallel bool, workers int, dispatch DispatchFunc) []*agent.Outcome {
	if len(units) == 0 {
		return nil
	}

	outcomes := make([]*agent.Outcome, len(units))

	if !parallel || len(units) == 1 {
		for i, unit := range units {
			outcomes[i] = c.runOne(ctx, unit, dispatch)
		}
		return outcomes
	}

	if workers <= 0 {
		workers = c.maxWorkers
	}
	if workers > len(units) {
		workers = len(units)
	}

	c.logger.Debug("dispatching parallel batch",
		zap.Int("units", len(units)),
		zap.Int("workers", workers),
	)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, unit := range units {
		wg.Add(1)
		go func(slot int, u agent.ExecContext) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[slot] = c.runOne(ctx, u, dispatch)
		}(i, unit)
	}

	wg.Wait()
	return outcomes
}

// runOne invokes dispatch with panic isolation. An unhandled fault in one
// unit becomes a failed Outcome instead of taking down the batch.
func (c *Coordinator) runOne(ctx context.Context, unit agent.ExecContext, dispatch DispatchFunc) (outcome *agent.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("dispatch panicked",
				zap.String("phase", unit.Phase),
				zap.String("agent", unit.Agent),
				zap.Any("panic", r),
			)
			outcome = &agent.Outcome{
				Agent:  unit.Agent,
				Signal: agent.SignalPanic,
				Errors: []string{fmt.Sprintf("panic: %v", r)},
			}
		}
	}()

	outcome = dispatch(ctx, unit)
	if outcome == nil {
		outcome = &agent.Outcome{
			Agent:  unit.Agent,
			Signal: agent.SignalError,
			Errors: []string{"dispatch returned no outcome"},
		}
	}
	return outcome
}
