package operators

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/generator"
	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/rs/zerolog"
)

// LoopStore is the persistence surface the operators need: reference lookup
// for relive and change operators, and creation for saved results. Stores
// that also implement generator.ClassAssigner get every saved loop
// assigned to its equivalence class.
type LoopStore interface {
	loop.Finder
	generator.Store
}

// Operator is one of the loop generation strategies.
type Operator interface {
	// Name returns the operator kind.
	Name() Kind

	// Execute runs the operator. Structural failures (unknown targets,
	// unreachable goals, missing references) are reported through the
	// result; the error is non-nil only when storage or the context fails.
	Execute(ctx context.Context, p Params) (*Result, error)
}

// Params carries the inputs of every operator. Fields an operator does not
// use are ignored.
type Params struct {
	// Epoch of the created loop. Empty defaults to naive.
	Epoch loop.Epoch

	// InitialKnowledge is what the protagonist knows when the loop starts.
	InitialKnowledge engine.Set

	// ParentID links the created loop to its predecessor.
	ParentID string

	// Save persists the created loop when a store is configured.
	Save bool

	// Target is the node to reach (cause) or to avoid (avoid).
	Target string

	// Sequence is the ordered list of checkpoints for trigger.
	Sequence []string

	// ReferenceID names the stored loop relive and the change operators start from.
	ReferenceID string

	// Changes is the number of decisions slightly-change alters. Zero or
	// less selects DefaultChanges; a change always alters at least one.
	Changes int

	// MinDistance is the node-set distance greatly-change aims for. Zero or
	// less selects DefaultMinDistance.
	MinDistance int

	// MaxAttempts bounds the search of every operator that retries. Zero or
	// less selects the operator's default.
	MaxAttempts int
}

// Result is the outcome of one operator execution.
type Result struct {
	Success        bool                     `json:"success"`
	Loop           *loop.Loop               `json:"loop,omitempty"`
	Simulation     *engine.SimulationResult `json:"simulation,omitempty"`
	Attempts       int                      `json:"attempts"`
	PartialSuccess bool                     `json:"partial_success"`
	Message        string                   `json:"message"`
	Decisions      []string                 `json:"decisions"`
}

func failure(format string, args ...interface{}) *Result {
	return &Result{Attempts: 1, Message: fmt.Sprintf(format, args...), Decisions: []string{}}
}

// Options configures operator construction.
type Options struct {
	// Store is optional. Relive and the change operators fail without it.
	Store LoopStore

	// Rand drives every random choice. Nil uses an unseeded generator.
	Rand *rand.Rand

	// Logger receives debug output. The zero value discards it.
	Logger zerolog.Logger
}

// base holds what all operators share.
type base struct {
	gen   *generator.Engine
	graph *engine.DayGraph
	store LoopStore
	rng   *rand.Rand
	log   zerolog.Logger
}

func newBase(kind Kind, g *engine.DayGraph, opts Options) base {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	log := opts.Logger.With().Str("operator", string(kind)).Logger()
	return base{
		gen:   generator.New(g, opts.Store, log),
		graph: g,
		store: opts.Store,
		rng:   rng,
		log:   log,
	}
}

func spec(p Params, tags ...string) generator.LoopSpec {
	return generator.LoopSpec{
		ParentID:  p.ParentID,
		Epoch:     p.Epoch,
		Knowledge: p.InitialKnowledge,
		Tags:      tags,
		Save:      p.Save,
	}
}

// simulate builds the loop decisions describe without saving it. The loop
// is nil when the simulation fails.
func (b *base) simulate(decisions []string, p Params) (*loop.Loop, *engine.SimulationResult) {
	return b.gen.Build(decisions, spec(p))
}

// record builds the loop with tags and saves it when p.Save is set.
func (b *base) record(ctx context.Context, decisions []string, p Params, tags ...string) (*loop.Loop, *engine.SimulationResult, error) {
	return b.gen.Record(ctx, decisions, spec(p, tags...))
}

// reference loads the loop a relive or change operator starts from. Exactly
// one of the loop, a failure result, or an error is non-nil.
func (b *base) reference(ctx context.Context, id string) (*loop.Loop, *Result, error) {
	if b.store == nil {
		return nil, failure("No storage available to retrieve reference loop"), nil
	}

	ref, err := b.store.GetLoop(ctx, id)
	switch {
	case errors.Is(err, loop.ErrNotFound):
		return nil, failure("Reference loop '%s' not found", id), nil
	case err != nil:
		return nil, nil, engine.NewTransientError("failed to load reference loop", err).
			WithCode(engine.ErrCodeStorageFailed).
			WithSubject(id)
	case ref == nil:
		return nil, failure("Reference loop '%s' not found", id), nil
	}

	if len(ref.DecisionTrace) == 0 {
		return nil, failure("Reference loop has no decision trace"), nil
	}
	return ref, nil, nil
}

// advance applies the effects of each node in path to knowledge only.
func (b *base) advance(knowledge engine.Set, path []string) engine.Set {
	for _, id := range path {
		if n := b.graph.Node(id); n != nil {
			knowledge, _ = n.ApplyEffects(knowledge, engine.NewSet())
		}
	}
	return knowledge
}

func attemptsOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
