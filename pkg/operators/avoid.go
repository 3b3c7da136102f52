package operators

import (
	"context"
	"slices"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

// AvoidWalkSteps bounds each random walk of the avoid fallback.
const AvoidWalkSteps = 20

// Avoid finds a route that never passes through a target event, preferring
// the longest such route. Paths to every terminal node are searched first;
// when none avoids the target, random walks that steer around it are tried.
type Avoid struct {
	base
}

// NewAvoid returns an avoid operator over g.
func NewAvoid(g *engine.DayGraph, opts Options) *Avoid {
	return &Avoid{base: newBase(KindAvoid, g, opts)}
}

// Name implements Operator.
func (a *Avoid) Name() Kind { return KindAvoid }

// Execute implements Operator.
func (a *Avoid) Execute(ctx context.Context, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := a.graph.StartNode()
	if start == nil {
		return failure("Graph has no start node"), nil
	}
	if !a.graph.HasNode(p.Target) {
		return failure("Target event '%s' not found in graph", p.Target), nil
	}

	maxAttempts := attemptsOrDefault(p.MaxAttempts, DefaultMaxAttempts)
	knowledge := p.InitialKnowledge.Clone()

	perTerminal := max(maxAttempts/2, 1)
	var safe [][]string
	for _, terminal := range a.terminals() {
		if terminal == p.Target {
			continue
		}
		for _, path := range a.graph.FindPaths(start.ID, terminal, knowledge, nil, engine.PathOptions{MaxPaths: perTerminal}) {
			if !slices.Contains(path, p.Target) {
				safe = append(safe, path)
			}
		}
	}

	if len(safe) == 0 {
		for range maxAttempts {
			walk := a.graph.RandomWalk(knowledge, engine.WalkOptions{MaxSteps: AvoidWalkSteps, Avoid: p.Target}, a.rng)
			if len(walk) > 0 && !slices.Contains(walk, p.Target) {
				safe = append(safe, walk)
			}
		}
	}

	if len(safe) == 0 {
		return failure("Cannot avoid '%s' - it may be unavoidable", p.Target), nil
	}

	best := safe[0]
	for _, path := range safe[1:] {
		if len(path) > len(best) {
			best = path
		}
	}
	a.log.Debug().Strs("path", best).Int("candidates", len(safe)).Msg("longest safe path selected")

	l, sim, err := a.record(ctx, best, p)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Success:    l != nil && !slices.Contains(best, p.Target),
		Loop:       l,
		Simulation: sim,
		Attempts:   len(safe),
		Decisions:  best,
		Message:    "Could not avoid target",
	}
	if res.Success {
		res.Message = "Target avoided"
	}
	return res, nil
}

// terminals returns death nodes and nodes without outgoing transitions, in
// graph order.
func (a *Avoid) terminals() []string {
	var out []string
	for _, n := range a.graph.Nodes() {
		if n.IsDeath() || len(a.graph.TransitionsFrom(n.ID)) == 0 {
			out = append(out, n.ID)
		}
	}
	return out
}
