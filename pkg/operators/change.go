package operators

import (
	"context"
	"fmt"
	"slices"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/loop"
)

// Loop tags added by the change operators.
const (
	TagSlightlyChanged = "slightly_changed"
	TagGreatlyChanged  = "greatly_changed"
)

// Walk bounds of the change operators.
const (
	CompletionSteps  = 15
	ExplorationSteps = 20
)

// SlightlyChange alters a few decisions of a stored loop and lets a random
// walk complete the day from the first altered decision.
type SlightlyChange struct {
	base
}

// NewSlightlyChange returns a slightly-change operator over g.
func NewSlightlyChange(g *engine.DayGraph, opts Options) *SlightlyChange {
	return &SlightlyChange{base: newBase(KindSlightlyChange, g, opts)}
}

// Name implements Operator.
func (s *SlightlyChange) Name() Kind { return KindSlightlyChange }

// Execute implements Operator.
func (s *SlightlyChange) Execute(ctx context.Context, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, fail, err := s.reference(ctx, p.ReferenceID)
	if fail != nil || err != nil {
		return fail, err
	}
	trace := ref.DecisionTrace
	if len(trace) < 2 {
		return failure("Reference loop too short to modify"), nil
	}

	changes := min(attemptsOrDefault(p.Changes, DefaultChanges), len(trace)-1)
	maxAttempts := attemptsOrDefault(p.MaxAttempts, DefaultMaxAttempts)

	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate := s.vary(trace, changes, p.InitialKnowledge)
		if slices.Equal(candidate, trace) {
			continue
		}

		l, sim, err := s.record(ctx, candidate, p, TagSlightlyChanged)
		if err != nil {
			return nil, err
		}
		if l == nil {
			continue
		}

		distance := loop.HammingDistance(ref.KeyChoices, l.KeyChoices)
		return &Result{
			Success:    true,
			Loop:       l,
			Simulation: sim,
			Attempts:   attempt + 1,
			Decisions:  candidate,
			Message:    fmt.Sprintf("Changed %d decision(s), Hamming distance: %d", changes, distance),
		}, nil
	}

	res := failure("Could not find valid variation")
	res.Attempts = maxAttempts
	return res, nil
}

// vary picks changes random positions after the first decision and swaps in
// an alternative choice at each, in ascending order. The first swap whose
// random completion extends the path replaces the remainder of the trace.
func (s *SlightlyChange) vary(trace []string, changes int, knowledge engine.Set) []string {
	positions := s.rng.Perm(len(trace) - 1)[:changes]
	for i := range positions {
		positions[i]++
	}
	slices.Sort(positions)

	out := slices.Clone(trace)
	for _, pos := range positions {
		state := s.graph.VisitAll(out[:pos], knowledge)

		var alternatives []*engine.Transition
		for _, t := range s.graph.ValidChoices(out[pos-1], state.Knowledge, state.WorldFacts) {
			if t.To != trace[pos] {
				alternatives = append(alternatives, t)
			}
		}
		if len(alternatives) == 0 {
			continue
		}

		out[pos] = alternatives[s.rng.IntN(len(alternatives))].To

		prefix := out[:pos+1]
		walk := s.graph.ExtendWalk(s.graph.VisitAll(prefix, knowledge), prefix, engine.WalkOptions{MaxSteps: CompletionSteps}, s.rng)
		if len(walk) > len(prefix) {
			out = walk
			break
		}
	}
	return out
}

// GreatlyChange explores random days until one visits a node set far enough
// from the reference loop's, keeping the most distant day found.
type GreatlyChange struct {
	base
}

// NewGreatlyChange returns a greatly-change operator over g.
func NewGreatlyChange(g *engine.DayGraph, opts Options) *GreatlyChange {
	return &GreatlyChange{base: newBase(KindGreatlyChange, g, opts)}
}

// Name implements Operator.
func (gc *GreatlyChange) Name() Kind { return KindGreatlyChange }

// Execute implements Operator.
func (gc *GreatlyChange) Execute(ctx context.Context, p Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ref, fail, err := gc.reference(ctx, p.ReferenceID)
	if fail != nil || err != nil {
		return fail, err
	}

	minDistance := attemptsOrDefault(p.MinDistance, DefaultMinDistance)
	maxAttempts := attemptsOrDefault(p.MaxAttempts, DefaultGreatlyChangeAttempts)
	refNodes := engine.NewSet(ref.DecisionTrace...)

	var (
		best         *loop.Loop
		bestSim      *engine.SimulationResult
		bestDistance = -1
		attempts     int
	)
	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts = attempt + 1

		walk := gc.graph.RandomWalk(p.InitialKnowledge, engine.WalkOptions{MaxSteps: ExplorationSteps}, gc.rng)
		if len(walk) == 0 {
			continue
		}

		l, sim := gc.simulate(walk, p)
		if l == nil {
			continue
		}

		distance := NodeDistance(refNodes, engine.NewSet(l.DecisionTrace...))
		if distance > bestDistance {
			best, bestSim, bestDistance = l, sim, distance
		}
		if bestDistance >= minDistance {
			break
		}
	}

	if best == nil {
		res := failure("Could not generate valid divergent loop")
		res.Attempts = maxAttempts
		return res, nil
	}

	best.AddTag(TagGreatlyChanged)
	if p.Save {
		if err := gc.gen.Save(ctx, best); err != nil {
			return nil, err
		}
	}
	gc.log.Debug().Int("distance", bestDistance).Int("attempts", attempts).Msg("divergent loop selected")

	return &Result{
		Success:    bestDistance >= minDistance,
		Loop:       best,
		Simulation: bestSim,
		Attempts:   attempts,
		Decisions:  slices.Clone(best.DecisionTrace),
		Message:    fmt.Sprintf("Distance from reference: %d", bestDistance),
	}, nil
}

// NodeDistance is the size of the symmetric difference of two node sets.
func NodeDistance(a, b engine.Set) int {
	return len(a.Minus(b)) + len(b.Minus(a))
}
