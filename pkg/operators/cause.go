package operators

import (
	"context"
	"slices"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

// Cause finds a route to a target event and simulates the shortest one.
// When the target is gated behind knowledge the protagonist lacks, it first
// tries each revelation in turn and searches again with what it teaches. A
// route found that way is recorded as a loop that starts out knowing what
// the revelation taught.
type Cause struct {
	base
}

// NewCause returns a cause operator over g.
func NewCause(g *engine.DayGraph, opts Options) *Cause {
	return &Cause{base: newBase(KindCause, g, opts)}
}

// Name implements Operator.
func (c *Cause) Name() Kind { return KindCause }

// Execute implements Operator.
func (c *Cause) Execute(ctx context.Context, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := c.graph.StartNode()
	if start == nil {
		return failure("Graph has no start node"), nil
	}
	if !c.graph.HasNode(p.Target) {
		return failure("Target event '%s' not found in graph", p.Target), nil
	}

	maxAttempts := attemptsOrDefault(p.MaxAttempts, DefaultMaxAttempts)
	knowledge := p.InitialKnowledge.Clone()
	paths := c.graph.FindPaths(start.ID, p.Target, knowledge, nil, engine.PathOptions{MaxPaths: maxAttempts})

	if len(paths) == 0 {
		var gained engine.Set
		if paths, gained = c.viaRevelation(start.ID, p.Target, knowledge); len(paths) > 0 {
			p.InitialKnowledge = gained
		}
	}
	if len(paths) == 0 {
		return failure("No path found to '%s'", p.Target), nil
	}

	best := paths[0]
	for _, path := range paths[1:] {
		if len(path) < len(best) {
			best = path
		}
	}
	c.log.Debug().Strs("path", best).Int("candidates", len(paths)).Msg("shortest path selected")

	l, sim, err := c.record(ctx, best, p)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Success:    l != nil && slices.Contains(best, p.Target),
		Loop:       l,
		Simulation: sim,
		Attempts:   1,
		Decisions:  best,
		Message:    "Simulation failed",
	}
	if l != nil {
		res.Message = "Target event reached"
	}
	return res, nil
}

// viaRevelation visits revelations in graph order until one of them opens a
// path to the target. It returns that path with the knowledge it needs.
func (c *Cause) viaRevelation(start, target string, knowledge engine.Set) ([][]string, engine.Set) {
	for _, rev := range c.graph.RevelationNodes() {
		test := c.graph.FindPaths(start, rev.ID, knowledge, nil, engine.PathOptions{MaxPaths: 1})
		if len(test) == 0 {
			continue
		}

		sim := c.graph.Simulate(engine.SimulationInput{Decisions: test[0], Knowledge: knowledge})
		if !sim.Success {
			continue
		}

		knowledge = sim.FinalState.Knowledge
		c.log.Debug().Str("revelation", rev.ID).Strs("knowledge", knowledge.Sorted()).Msg("searching again after revelation")
		if paths := c.graph.FindPaths(start, target, knowledge, nil, engine.PathOptions{MaxPaths: 1}); len(paths) > 0 {
			return paths, knowledge
		}
	}
	return nil, nil
}
