package generator

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

// DefaultMaxSteps bounds a random loop.
const DefaultMaxSteps = 20

// ErrNoStartNode is returned when the graph has no node at time slot zero.
var ErrNoStartNode = engine.NewValidationError("", "graph has no start node").WithCode(engine.ErrCodeInvalidGraph)

// RandomLoop walks from the start node choosing uniformly among valid
// choices for at most maxSteps transitions, then records the walk.
func (e *Engine) RandomLoop(ctx context.Context, spec LoopSpec, maxSteps int, rng *rand.Rand) (*Generated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	walk := e.graph.RandomWalk(spec.Knowledge, engine.WalkOptions{MaxSteps: maxSteps}, rng)
	if walk == nil {
		return nil, ErrNoStartNode
	}
	return e.generate(ctx, walk, spec)
}

// PathToGoal records the first path found from the start node to goal. The
// error carries ErrCodeNotFound when no path exists.
func (e *Engine) PathToGoal(ctx context.Context, goal string, spec LoopSpec) (*Generated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := e.graph.StartNode()
	if start == nil {
		return nil, ErrNoStartNode
	}
	paths := e.graph.FindPaths(start.ID, goal, spec.Knowledge, nil, engine.PathOptions{MaxPaths: 1})
	if len(paths) == 0 {
		return nil, engine.NewNotFoundError(goal, fmt.Sprintf("no path from %s to %s", start.ID, goal), nil)
	}
	return e.generate(ctx, paths[0], spec)
}

// Chain generates count random loops in sequence. Each loop's parent is the
// one before it and each starts with the knowledge the previous one ended
// with.
func (e *Engine) Chain(ctx context.Context, count int, spec LoopSpec, rng *rand.Rand) ([]*Generated, error) {
	out := make([]*Generated, 0, count)
	for range count {
		g, err := e.RandomLoop(ctx, spec, DefaultMaxSteps, rng)
		if err != nil {
			return out, err
		}
		out = append(out, g)

		spec.ParentID = g.Loop.ID
		if g.Simulation.FinalState != nil {
			spec.Knowledge = g.Simulation.FinalState.Knowledge.Clone()
		}
	}
	return out, nil
}

func (e *Engine) generate(ctx context.Context, decisions []string, spec LoopSpec) (*Generated, error) {
	l, sim, err := e.Record(ctx, decisions, spec)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, engine.NewPermanentError(sim.ErrorMessage, nil).WithCode(engine.ErrCodeInternal)
	}
	return &Generated{Loop: l, Simulation: sim}, nil
}
