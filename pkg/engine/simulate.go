package engine

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/CrazyDubya/Loop/pkg/loop"
)

// SimulationInput describes a caller-supplied decision sequence to walk.
type SimulationInput struct {
	// Decisions is the ordered list of node ids to visit.
	Decisions []string

	// Knowledge is the starting knowledge. It is copied, never mutated.
	Knowledge Set

	// Facts is the starting world state. It is copied, never mutated.
	Facts Set

	// Probabilistic enables probability rolls on transitions.
	Probabilistic bool

	// Rand drives probability rolls. When nil and Probabilistic is set, an
	// unseeded generator is used.
	Rand *rand.Rand
}

// Simulate walks in.Decisions and checks each step is legal: the node
// exists, an edge leads to it from the previous node, the edge's conditions
// hold, the probability roll succeeds (when enabled), and the node's
// preconditions hold. The first failure stops the walk and is reported in the
// result. Death stops the walk with DeathNode set.
func (g *DayGraph) Simulate(in SimulationInput) *SimulationResult {
	rng := in.Rand
	if in.Probabilistic && rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	state := NewWorldState(in.Knowledge, in.Facts)
	result := &SimulationResult{Success: true, DecisionTrace: []string{}}

	fail := func(format string, args ...interface{}) {
		result.Success = false
		result.TerminatedEarly = true
		result.ErrorMessage = fmt.Sprintf(format, args...)
	}

	for i, id := range in.Decisions {
		node := g.Node(id)
		if node == nil {
			fail("Node not found: %s", id)
			break
		}

		if i > 0 {
			prev := in.Decisions[i-1]
			edge := g.firstEdge(prev, id)
			if edge == nil {
				fail("No transition from %s to %s", prev, id)
				break
			}
			if !edge.CanTraverse(state.Knowledge, state.WorldFacts) {
				fail("Conditions not met for %s -> %s", prev, id)
				break
			}
			if in.Probabilistic && !edge.RollSuccess(rng) {
				fail("Probability roll failed for %s -> %s", prev, id)
				break
			}
		}

		if !node.CanEnter(state.Knowledge, state.WorldFacts) {
			fail("Cannot enter %s: preconditions not met", id)
			break
		}

		state.Visit(node)
		result.DecisionTrace = append(result.DecisionTrace, id)

		if state.IsDead {
			result.DeathNode = id
			break
		}
	}

	g.finalize(result, state, in.Knowledge)
	return result
}

// firstEdge returns the first transition from -> to in insertion order.
func (g *DayGraph) firstEdge(from, to string) *Transition {
	for _, t := range g.edgesFrom[from] {
		if t.To == to {
			return t
		}
	}
	return nil
}

func (g *DayGraph) finalize(result *SimulationResult, state *WorldState, initial Set) {
	result.FinalState = state
	result.KnowledgeGained = state.Knowledge.Minus(initial).Sorted()
	result.Outcome = g.Classifier().Classify(state)
	result.OutcomeHash = loop.OutcomeHash(
		result.Outcome.Survivors,
		result.Outcome.Deaths,
		result.Outcome.StateChanges,
		result.Outcome.EndingType,
	)
	result.KnowledgeID = loop.KnowledgeID(state.Knowledge.Sorted(), nil, nil)
}

// VisitAll visits every known node of trace in order without legality
// checks and returns the resulting state. Unknown ids are skipped.
func (g *DayGraph) VisitAll(trace []string, knowledge Set) *WorldState {
	state := NewWorldState(knowledge, nil)
	for _, id := range trace {
		if node := g.Node(id); node != nil {
			state.Visit(node)
		}
	}
	return state
}

// WalkOptions bounds a random walk.
type WalkOptions struct {
	// MaxSteps is the maximum number of transitions taken.
	MaxSteps int

	// Avoid is a node id the walk steers away from while any other valid
	// choice exists.
	Avoid string
}

// ExtendWalk continues path from state by picking uniformly among valid
// choices until death, a dead end, or MaxSteps. state is mutated; the
// returned slice is a new path beginning with path.
func (g *DayGraph) ExtendWalk(state *WorldState, path []string, opts WalkOptions, rng *rand.Rand) []string {
	out := slices.Clone(path)
	for range opts.MaxSteps {
		if state.IsDead {
			break
		}

		choices := g.ValidChoices(state.CurrentNode, state.Knowledge, state.WorldFacts)
		if opts.Avoid != "" {
			safe := slices.DeleteFunc(slices.Clone(choices), func(t *Transition) bool { return t.To == opts.Avoid })
			if len(safe) > 0 {
				choices = safe
			}
		}
		if len(choices) == 0 {
			break
		}

		next := g.Node(choices[rng.IntN(len(choices))].To)
		out = append(out, next.ID)
		state.Visit(next)
	}
	return out
}

// RandomWalk walks from the start node with the given knowledge. It returns
// nil when the graph has no start node.
func (g *DayGraph) RandomWalk(knowledge Set, opts WalkOptions, rng *rand.Rand) []string {
	start := g.StartNode()
	if start == nil {
		return nil
	}
	state := NewWorldState(knowledge, nil)
	state.Visit(start)
	return g.ExtendWalk(state, []string{start.ID}, opts, rng)
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
