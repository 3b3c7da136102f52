package generator

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
	"github.com/rs/zerolog"
)

type memStore struct {
	mu      sync.Mutex
	loops   []*loop.Loop
	err     error
	classes int
}

func (m *memStore) CreateLoop(_ context.Context, l *loop.Loop) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.loops = append(m.loops, l)
	return l.ID, nil
}

func (m *memStore) AssignClass(_ context.Context, l *loop.Loop) (*loop.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes++
	return loop.NewClass(l), nil
}

func newEngine(t *testing.T, store Store) *Engine {
	t.Helper()
	g, err := engine.BuildGraph(engine.SampleDefinition())
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	return New(g, store, zerolog.Nop())
}

func TestBuild(t *testing.T) {
	e := newEngine(t, nil)

	tests := []struct {
		name      string
		decisions []string
		wantLoop  bool
		tags      []string
		choices   uint64
	}{
		{
			name:      "good day",
			decisions: []string{"start", "choice_a", "revelation", "success"},
			wantLoop:  true,
			choices:   0b101,
		},
		{
			name:      "early death",
			decisions: []string{"start", "choice_b", "death"},
			wantLoop:  true,
			tags:      []string{loop.TagDeath, loop.TagShortLoop},
			choices:   0b010,
		},
		{
			name:      "illegal jump",
			decisions: []string{"start", "success"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, sim := e.Build(tt.decisions, LoopSpec{ParentID: "loop-parent", Tags: []string{"manual"}})
			if (l != nil) != tt.wantLoop {
				t.Fatalf("Build() loop = %v, want loop %v (sim %q)", l, tt.wantLoop, sim.ErrorMessage)
			}
			if l == nil {
				return
			}
			if l.ParentID != "loop-parent" || l.Epoch != loop.EpochNaive {
				t.Errorf("ParentID = %q, Epoch = %q", l.ParentID, l.Epoch)
			}
			if l.KeyChoices != tt.choices {
				t.Errorf("KeyChoices = %b, want %b", l.KeyChoices, tt.choices)
			}
			for _, tag := range append(tt.tags, "manual") {
				if !l.HasTag(tag) {
					t.Errorf("Tags = %v, missing %s", l.Tags, tag)
				}
			}
			if l.OutcomeHash != sim.OutcomeHash {
				t.Errorf("OutcomeHash = %q, want %q", l.OutcomeHash, sim.OutcomeHash)
			}
		})
	}
}

func TestRecord_SavesAndAssignsClass(t *testing.T) {
	store := &memStore{}
	e := newEngine(t, store)

	l, _, err := e.Record(context.Background(), []string{"start", "choice_b", "death"}, LoopSpec{Save: true})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(store.loops) != 1 || store.classes != 1 || l.ClassID == "" {
		t.Errorf("loops = %d, classes = %d, class_id = %q", len(store.loops), store.classes, l.ClassID)
	}

	if _, _, err := e.Record(context.Background(), []string{"start", "choice_b"}, LoopSpec{}); err != nil {
		t.Fatalf("Record() unsaved error = %v", err)
	}
	if len(store.loops) != 1 {
		t.Errorf("unsaved loop persisted")
	}

	store.err = errors.New("disk full")
	_, _, err = e.Record(context.Background(), []string{"start", "choice_b"}, LoopSpec{Save: true})
	if !engine.HasCode(err, engine.ErrCodeStorageFailed) {
		t.Errorf("Record() error = %v, want STORAGE_FAILED", err)
	}
}

func TestRandomLoop(t *testing.T) {
	e := newEngine(t, nil)

	a, err := e.RandomLoop(context.Background(), LoopSpec{}, 0, engine.NewRand(9))
	if err != nil {
		t.Fatalf("RandomLoop() error = %v", err)
	}
	b, err := e.RandomLoop(context.Background(), LoopSpec{}, 0, engine.NewRand(9))
	if err != nil {
		t.Fatalf("RandomLoop() error = %v", err)
	}
	if !slices.Equal(a.Loop.DecisionTrace, b.Loop.DecisionTrace) {
		t.Errorf("same seed produced %v and %v", a.Loop.DecisionTrace, b.Loop.DecisionTrace)
	}
	if a.Loop.DecisionTrace[0] != "start" {
		t.Errorf("trace %v does not begin at start", a.Loop.DecisionTrace)
	}

	short, err := e.RandomLoop(context.Background(), LoopSpec{}, 1, engine.NewRand(9))
	if err != nil {
		t.Fatalf("RandomLoop() error = %v", err)
	}
	if len(short.Loop.DecisionTrace) != 2 {
		t.Errorf("one-step walk trace = %v", short.Loop.DecisionTrace)
	}

	empty := New(engine.NewDayGraph("empty", 1), nil, zerolog.Nop())
	if _, err := empty.RandomLoop(context.Background(), LoopSpec{}, 0, engine.NewRand(1)); !errors.Is(err, ErrNoStartNode) {
		t.Errorf("RandomLoop() on empty graph error = %v", err)
	}
}

func TestPathToGoal(t *testing.T) {
	e := newEngine(t, nil)

	gen, err := e.PathToGoal(context.Background(), "success", LoopSpec{})
	if err != nil {
		t.Fatalf("PathToGoal() error = %v", err)
	}
	if want := []string{"start", "choice_a", "revelation", "success"}; !slices.Equal(gen.Loop.DecisionTrace, want) {
		t.Errorf("trace = %v, want %v", gen.Loop.DecisionTrace, want)
	}

	if _, err := e.PathToGoal(context.Background(), "nowhere", LoopSpec{}); !engine.IsNotFound(err) {
		t.Errorf("PathToGoal(nowhere) error = %v, want not found", err)
	}
}

func TestChain(t *testing.T) {
	store := &memStore{}
	e := newEngine(t, store)

	chain, err := e.Chain(context.Background(), 5, LoopSpec{Save: true}, engine.NewRand(4))
	if err != nil {
		t.Fatalf("Chain() error = %v", err)
	}
	if len(chain) != 5 || len(store.loops) != 5 {
		t.Fatalf("chain = %d loops, stored %d", len(chain), len(store.loops))
	}
	if chain[0].Loop.ParentID != "" {
		t.Errorf("first loop has parent %q", chain[0].Loop.ParentID)
	}

	for i := 1; i < len(chain); i++ {
		prev, cur := chain[i-1], chain[i]
		if cur.Loop.ParentID != prev.Loop.ID {
			t.Errorf("loop %d parent = %q, want %q", i, cur.Loop.ParentID, prev.Loop.ID)
		}
		for _, k := range prev.Simulation.FinalState.Knowledge.Sorted() {
			if !cur.Simulation.FinalState.Knowledge.Has(k) {
				t.Errorf("loop %d lost knowledge %s", i, k)
			}
		}
	}
}

func TestBatch(t *testing.T) {
	store := &memStore{}
	e := newEngine(t, store)
	ctx := telemetry.Disabled().WithContext(context.Background())

	opts := BatchOptions{Count: 12, Workers: 3, Seed: 100, Spec: LoopSpec{Save: true}}
	res, err := e.Batch(ctx, opts)
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if res.Succeeded != 12 || res.Failed != 0 {
		t.Errorf("Succeeded = %d, Failed = %d", res.Succeeded, res.Failed)
	}
	if len(store.loops) != 12 {
		t.Errorf("stored %d loops, want 12", len(store.loops))
	}

	again, err := e.Batch(ctx, BatchOptions{Count: 12, Workers: 5, Seed: 100})
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	for i := range res.Loops {
		if !slices.Equal(res.Loops[i].Loop.DecisionTrace, again.Loops[i].Loop.DecisionTrace) {
			t.Errorf("item %d differs between worker counts", i)
		}
	}

	if _, err := e.Batch(ctx, BatchOptions{Count: -1}); err == nil {
		t.Error("negative count accepted")
	}
}

func TestBatch_StoreFailures(t *testing.T) {
	store := &memStore{err: errors.New("locked")}
	e := newEngine(t, store)

	res, err := e.Batch(context.Background(), BatchOptions{Count: 4, Spec: LoopSpec{Save: true}})
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if res.Failed != 4 || res.Succeeded != 0 {
		t.Errorf("Succeeded = %d, Failed = %d", res.Succeeded, res.Failed)
	}
	for i, l := range res.Loops {
		if l != nil {
			t.Errorf("item %d has a loop despite failure", i)
		}
	}
}

func TestBatch_Canceled(t *testing.T) {
	e := newEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Batch(ctx, BatchOptions{Count: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Batch() error = %v, want context.Canceled", err)
	}
	if res.Failed != 3 {
		t.Errorf("Failed = %d, want 3", res.Failed)
	}
}

func TestAnalyzeReachability(t *testing.T) {
	e := newEngine(t, nil)

	report, err := e.AnalyzeReachability(nil)
	if err != nil {
		t.Fatalf("AnalyzeReachability() error = %v", err)
	}
	if report.TotalNodes != 6 || report.ReachableNodes != 6 || report.UnreachableNodes != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.ReachableDeaths != 1 || report.ReachableRevelations != 1 {
		t.Errorf("deaths = %d, revelations = %d", report.ReachableDeaths, report.ReachableRevelations)
	}
	if report.CoveragePercent != 100 {
		t.Errorf("CoveragePercent = %v", report.CoveragePercent)
	}

	stats := e.Stats()
	if stats.TotalNodes != 6 || stats.TotalTransitions != 7 || stats.DeathNodes != 1 || stats.TimeSlots != 4 {
		t.Errorf("Stats() = %+v", stats)
	}
}
