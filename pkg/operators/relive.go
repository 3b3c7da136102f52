package operators

import (
	"context"
	"fmt"
	"slices"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

// Loop tags added by the relive operator.
const (
	TagRelive        = "relive"
	TagRelivePartial = "relive_partial"
)

// Relive replays a stored loop. When the graph or the starting knowledge no
// longer allows the full trace, it follows the reference for as long as each
// step stays a valid choice.
type Relive struct {
	base
}

// NewRelive returns a relive operator over g.
func NewRelive(g *engine.DayGraph, opts Options) *Relive {
	return &Relive{base: newBase(KindRelive, g, opts)}
}

// Name implements Operator.
func (r *Relive) Name() Kind { return KindRelive }

// Execute implements Operator.
func (r *Relive) Execute(ctx context.Context, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, fail, err := r.reference(ctx, p.ReferenceID)
	if fail != nil || err != nil {
		return fail, err
	}
	trace := ref.DecisionTrace

	l, sim, err := r.record(ctx, trace, p, TagRelive)
	if err != nil {
		return nil, err
	}
	if l != nil {
		divergence := 0
		for i := range min(len(trace), len(sim.DecisionTrace)) {
			if trace[i] != sim.DecisionTrace[i] {
				divergence++
			}
		}
		return &Result{
			Success:    true,
			Loop:       l,
			Simulation: sim,
			Attempts:   1,
			Decisions:  slices.Clone(trace),
			Message:    fmt.Sprintf("Relived loop (divergence: %d)", divergence),
		}, nil
	}

	partial := r.follow(trace, p.InitialKnowledge)
	r.log.Debug().
		Str("reference", ref.ID).
		Int("followed", len(partial)).
		Int("total", len(trace)).
		Msg("reference no longer valid, following prefix")

	l, sim, err = r.record(ctx, partial, p, TagRelivePartial)
	if err != nil {
		return nil, err
	}
	return &Result{
		Success:        l != nil,
		Loop:           l,
		Simulation:     sim,
		Attempts:       1,
		PartialSuccess: len(partial) < len(trace),
		Decisions:      partial,
		Message:        "Partial relive - original path no longer valid",
	}, nil
}

// follow returns the longest prefix of trace whose every step is a valid
// choice from the step before it.
func (r *Relive) follow(trace []string, initial engine.Set) []string {
	partial := []string{trace[0]}
	knowledge := r.advance(initial.Clone(), partial)

	for _, next := range trace[1:] {
		current := partial[len(partial)-1]
		valid := slices.ContainsFunc(r.graph.ValidChoices(current, knowledge, engine.NewSet()), func(t *engine.Transition) bool {
			return t.To == next
		})
		if !valid {
			break
		}
		partial = append(partial, next)
		knowledge = r.advance(knowledge, []string{next})
	}
	return partial
}
