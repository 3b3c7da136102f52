package operators

import (
	"context"
	"slices"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

// Trigger threads a route through an ordered list of checkpoints, joining
// consecutive checkpoints with the first path found between them.
type Trigger struct {
	base
}

// NewTrigger returns a trigger operator over g.
func NewTrigger(g *engine.DayGraph, opts Options) *Trigger {
	return &Trigger{base: newBase(KindTrigger, g, opts)}
}

// Name implements Operator.
func (t *Trigger) Name() Kind { return KindTrigger }

// Execute implements Operator.
func (t *Trigger) Execute(ctx context.Context, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(p.Sequence) == 0 {
		return failure("Empty sequence provided"), nil
	}
	start := t.graph.StartNode()
	if start == nil {
		return failure("Graph has no start node"), nil
	}
	for _, id := range p.Sequence {
		if !t.graph.HasNode(id) {
			return failure("Sequence node '%s' not found", id), nil
		}
	}

	knowledge := p.InitialKnowledge.Clone()
	path := []string{start.ID}
	if p.Sequence[0] == start.ID {
		path = []string{}
	}
	current := start.ID

	for _, checkpoint := range p.Sequence {
		if current == checkpoint {
			if !slices.Contains(path, checkpoint) {
				path = append(path, checkpoint)
			}
			continue
		}

		paths := t.graph.FindPaths(current, checkpoint, knowledge, nil, engine.PathOptions{MaxPaths: 1})
		if len(paths) == 0 {
			t.log.Debug().Str("from", current).Str("to", checkpoint).Msg("checkpoint unreachable")
			return &Result{
				Attempts:       1,
				PartialSuccess: len(path) > 1,
				Message:        "Cannot reach '" + checkpoint + "' from '" + current + "'",
				Decisions:      path,
			}, nil
		}

		segment := paths[0][1:]
		path = append(path, segment...)
		knowledge = t.advance(knowledge, segment)
		current = checkpoint
	}

	l, sim, err := t.record(ctx, path, p)
	if err != nil {
		return nil, err
	}

	allHit := true
	for _, id := range p.Sequence {
		if !slices.Contains(path, id) {
			allHit = false
			break
		}
	}

	res := &Result{
		Success:    l != nil && allHit,
		Loop:       l,
		Simulation: sim,
		Attempts:   1,
		Decisions:  path,
		Message:    "Partial sequence",
	}
	if res.Success {
		res.Message = "Sequence triggered"
	}
	return res, nil
}
