package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/phaserun/internal/agent"
)

func units(names ...string) []agent.ExecContext {
	out := make([]agent.ExecContext, len(names))
	for i, n := range names {
		out[i] = agent.ExecContext{Phase: "build", Agent: n}
	}
	return out
}

func TestRun_SequentialOrder(t *testing.T) {
	c := NewCoordinator(4, nil)
	var order []string

	outcomes := c.Run(context.Background(), units("a", "b", "c"), false, 0, func(ctx context.Context, u agent.ExecContext) *agent.Outcome {
		order = append(order, u.Agent)
		return &agent.Outcome{Agent: u.Agent, Success: true, Signal: agent.SignalOK}
	})

	assert.Equal(t, []string{"a", "b", "c"}, order)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "a", outcomes[0].Agent)
	assert.Equal(t, "c", outcomes[2].Agent)
}

func TestRun_ParallelOutcomesMatchScheduleOrder(t *testing.T) {
	c := NewCoordinator(4, nil)

	outcomes := c.Run(context.Background(), units("a", "b", "c"), true, 0, func(ctx context.Context, u agent.ExecContext) *agent.Outcome {
		// Reverse the completion order to prove slots, not finish order,
		// decide the result positions.
		switch u.Agent {
		case "a":
			time.Sleep(30 * time.Millisecond)
		case "b":
			time.Sleep(15 * time.Millisecond)
		}
		return &agent.Outcome{Agent: u.Agent, Success: true, Signal: agent.SignalOK}
	})

	require.Len(t, outcomes, 3)
	assert.Equal(t, "a", outcomes[0].Agent)
	assert.Equal(t, "b", outcomes[1].Agent)
	assert.Equal(t, "c", outcomes[2].Agent)
}

func TestRun_WorkerLimitRespected(t *testing.T) {
	c := NewCoordinator(2, nil)
	var current, peak atomic.Int32

	c.Run(context.Background(), units("a", "b", "c", "d", "e"), true, 0, func(ctx context.Context, u agent.ExecContext) *agent.Outcome {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return &agent.Outcome{Agent: u.Agent, Success: true}
	})

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_WorkerOverride(t *testing.T) {
	c := NewCoordinator(1, nil)
	var current, peak atomic.Int32

	c.Run(context.Background(), units("a", "b", "c"), true, 3, func(ctx context.Context, u agent.ExecContext) *agent.Outcome {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return &agent.Outcome{Agent: u.Agent, Success: true}
	})

	assert.Greater(t, peak.Load(), int32(1), "per-call override raises the limit above the default of 1")
}

func TestRun_PanicIsolation(t *testing.T) {
	c := NewCoordinator(4, nil)

	outcomes := c.Run(context.Background(), units("a", "b", "c"), true, 0, func(ctx context.Context, u agent.ExecContext) *agent.Outcome {
		if u.Agent == "b" {
			panic("unit b exploded")
		}
		return &agent.Outcome{Agent: u.Agent, Success: true, Signal: agent.SignalOK}
	})

	require.Len(t, outcomes, 3, "a panicking unit still yields exactly N outcomes")
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.Equal(t, agent.SignalPanic, outcomes[1].Signal)
	assert.Contains(t, outcomes[1].Errors[0], "unit b exploded")
	assert.True(t, outcomes[2].Success, "sibling failure never cancels other units")
}

func TestRun_SequentialPanicIsolation(t *testing.T) {
	c := NewCoordinator(1, nil)

	outcomes := c.Run(context.Background(), units("a", "b"), false, 0, func(ctx context.Context, u agent.ExecContext) *agent.Outcome {
		if u.Agent == "a" {
			panic("boom")
		}
		return &agent.Outcome{Agent: u.Agent, Success: true}
	})

	require.Len(t, outcomes, 2)
	assert.Equal(t, agent.SignalPanic, outcomes[0].Signal)
	assert.True(t, outcomes[1].Success)
}

func TestRun_NilOutcomeConverted(t *testing.T) {
	c := NewCoordinator(1, nil)

	outcomes := c.Run(context.Background(), units("a"), false, 0, func(ctx context.Context, u agent.ExecContext) *agent.Outcome {
		return nil
	})

	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, agent.SignalError, outcomes[0].Signal)
}

func TestRun_EmptyBatch(t *testing.T) {
	c := NewCoordinator(2, nil)
	assert.Nil(t, c.Run(context.Background(), nil, true, 0, nil))
}
