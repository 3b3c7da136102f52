package generator

import (
	"context"
	"slices"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/rs/zerolog"
)

// Store persists generated loops.
type Store interface {
	CreateLoop(ctx context.Context, l *loop.Loop) (string, error)
}

// ClassAssigner is implemented by stores that maintain equivalence classes.
// When the engine's store implements it, every saved loop is assigned.
type ClassAssigner interface {
	AssignClass(ctx context.Context, l *loop.Loop) (*loop.Class, error)
}

// LoopSpec describes the loop a decision list should become.
type LoopSpec struct {
	// ParentID links the loop to its predecessor.
	ParentID string

	// Epoch of the loop. Empty defaults to naive.
	Epoch loop.Epoch

	// Knowledge is what the protagonist knows when the loop starts.
	Knowledge engine.Set

	// Tags are added after the automatic ones.
	Tags []string

	// Save persists the loop when the engine has a store.
	Save bool
}

// Generated pairs a loop with the simulation that produced it.
type Generated struct {
	Loop       *loop.Loop               `json:"loop"`
	Simulation *engine.SimulationResult `json:"simulation"`
}

// Engine turns decision lists into loops over one day graph.
type Engine struct {
	graph *engine.DayGraph
	store Store
	log   zerolog.Logger
}

// New returns an engine over g. store may be nil, in which case nothing is
// persisted.
func New(g *engine.DayGraph, store Store, logger zerolog.Logger) *Engine {
	return &Engine{
		graph: g,
		store: store,
		log:   logger.With().Str("component", "generator").Logger(),
	}
}

// Graph returns the day graph the engine walks.
func (e *Engine) Graph() *engine.DayGraph {
	return e.graph
}

// Build replays decisions deterministically and, when the replay is legal,
// returns the loop it describes with automatic tags and key choices set.
// The loop is nil when the simulation fails.
func (e *Engine) Build(decisions []string, spec LoopSpec) (*loop.Loop, *engine.SimulationResult) {
	result := e.graph.Simulate(engine.SimulationInput{
		Decisions: decisions,
		Knowledge: spec.Knowledge,
	})
	if !result.Success {
		e.log.Debug().Str("reason", result.ErrorMessage).Msg("simulation rejected decisions")
		return nil, result
	}

	l := loop.New(spec.Epoch)
	l.ParentID = spec.ParentID
	l.OutcomeHash = result.OutcomeHash
	l.KnowledgeID = result.KnowledgeID
	l.DecisionTrace = slices.Clone(result.DecisionTrace)
	l.KeyChoices = KeyChoices(e.graph, result.DecisionTrace)

	if result.DeathNode != "" {
		l.AddTag(loop.TagDeath)
	}
	if result.TerminatedEarly {
		l.AddTag(loop.TagTerminatedEarly)
	}
	if len(result.DecisionTrace) < loop.ShortLoopThreshold {
		l.AddTag(loop.TagShortLoop)
	}
	for _, tag := range spec.Tags {
		l.AddTag(tag)
	}
	return l, result
}

// Record builds the loop and saves it when spec.Save is set.
func (e *Engine) Record(ctx context.Context, decisions []string, spec LoopSpec) (*loop.Loop, *engine.SimulationResult, error) {
	l, result := e.Build(decisions, spec)
	if l == nil || !spec.Save {
		return l, result, nil
	}
	if err := e.Save(ctx, l); err != nil {
		return nil, result, err
	}
	return l, result, nil
}

// Save persists l and assigns its class when the store supports it. Without
// a store it is a no-op.
func (e *Engine) Save(ctx context.Context, l *loop.Loop) error {
	if e.store == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := e.store.CreateLoop(ctx, l)
	if err != nil {
		return engine.NewTransientError("failed to save loop", err).
			WithCode(engine.ErrCodeStorageFailed).
			WithSubject(l.ID)
	}
	if id != "" {
		l.ID = id
	}

	if assigner, ok := e.store.(ClassAssigner); ok {
		class, err := assigner.AssignClass(ctx, l)
		if err != nil {
			return engine.NewTransientError("failed to assign loop class", err).
				WithCode(engine.ErrCodeStorageFailed).
				WithSubject(l.ID)
		}
		if class != nil {
			l.ClassID = class.ID
		}
	}

	e.log.Debug().Str("loop_id", l.ID).Str("class_id", l.ClassID).Msg("loop saved")
	return nil
}

// KeyChoices encodes which of the graph's key decisions appear in trace.
func KeyChoices(g *engine.DayGraph, trace []string) uint64 {
	keys := g.KeyDecisions()
	if len(keys) == 0 {
		return 0
	}
	flags := make(map[string]bool, len(keys))
	for name := range keys {
		flags[name] = slices.Contains(trace, name)
	}
	return loop.EncodeDecisions(flags, keys)
}
