package stores

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
)

var epoch0 = time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

// forEachBackend runs fn against a fresh in-memory store of every backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	for _, backend := range []string{BackendSQLite, BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			s, err := Open(context.Background(), Options{Backend: backend, InMemory: true})
			if err != nil {
				t.Fatalf("Open(%s) error = %v", backend, err)
			}
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

// newLoop returns a loop created n minutes after epoch0.
func newLoop(n int, epoch loop.Epoch, outcome, knowledge string) *loop.Loop {
	l := loop.New(epoch)
	l.OutcomeHash = outcome
	l.KnowledgeID = knowledge
	l.DecisionTrace = []string{"start", "choice_a", "success"}
	l.Tags = []string{loop.TagFirstLoop}
	l.KeyChoices = 1 << 63
	l.CreatedAt = epoch0.Add(time.Duration(n) * time.Minute)
	return l
}

func mustCreate(t *testing.T, s Store, loops ...*loop.Loop) {
	t.Helper()
	for _, l := range loops {
		if _, err := s.CreateLoop(context.Background(), l); err != nil {
			t.Fatalf("CreateLoop(%s) error = %v", l.ID, err)
		}
	}
}

func TestLoopCRUD(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		l := newLoop(0, loop.EpochMapping, "out-1", "know-1")
		l.MoodID = "mood-1"
		l.Notes = "first attempt"

		id, err := s.CreateLoop(ctx, l)
		if err != nil || id != l.ID {
			t.Fatalf("CreateLoop() = %q, %v", id, err)
		}
		if _, err := s.CreateLoop(ctx, l); !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("duplicate CreateLoop() error = %v, want ErrAlreadyExists", err)
		}

		got, err := s.GetLoop(ctx, l.ID)
		if err != nil {
			t.Fatalf("GetLoop() error = %v", err)
		}
		if got.Epoch != loop.EpochMapping || got.OutcomeHash != "out-1" || got.KnowledgeID != "know-1" || got.MoodID != "mood-1" {
			t.Errorf("GetLoop() = %+v", got)
		}
		if got.KeyChoices != 1<<63 {
			t.Errorf("KeyChoices = %d, want %d", got.KeyChoices, uint64(1<<63))
		}
		if !slices.Equal(got.DecisionTrace, l.DecisionTrace) || !slices.Equal(got.Tags, l.Tags) {
			t.Errorf("trace = %v, tags = %v", got.DecisionTrace, got.Tags)
		}
		if !got.CreatedAt.Equal(l.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, l.CreatedAt)
		}

		got.AddTag(loop.TagDeath)
		got.Notes = "revised"
		if err := s.UpdateLoop(ctx, got); err != nil {
			t.Fatalf("UpdateLoop() error = %v", err)
		}
		again, _ := s.GetLoop(ctx, l.ID)
		if !again.HasTag(loop.TagDeath) || again.Notes != "revised" {
			t.Errorf("update not persisted: %+v", again)
		}

		if err := s.DeleteLoop(ctx, l.ID); err != nil {
			t.Fatalf("DeleteLoop() error = %v", err)
		}
		if _, err := s.GetLoop(ctx, l.ID); !errors.Is(err, loop.ErrNotFound) {
			t.Errorf("GetLoop() after delete error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteLoop(ctx, l.ID); !errors.Is(err, loop.ErrNotFound) {
			t.Errorf("second DeleteLoop() error = %v, want ErrNotFound", err)
		}
		if err := s.UpdateLoop(ctx, l); !errors.Is(err, loop.ErrNotFound) {
			t.Errorf("UpdateLoop() of missing loop error = %v, want ErrNotFound", err)
		}
	})
}

func TestListLoops(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		root := newLoop(0, loop.EpochNaive, "out-a", "k-1")
		child := newLoop(1, loop.EpochMapping, "out-b", "k-1")
		child.ParentID = root.ID
		other := newLoop(2, loop.EpochMapping, "out-a", "k-2")
		mustCreate(t, s, other, child, root)

		tests := []struct {
			name   string
			filter LoopFilter
			want   []string
		}{
			{"all oldest first", LoopFilter{}, []string{root.ID, child.ID, other.ID}},
			{"by epoch", LoopFilter{Epoch: loop.EpochMapping}, []string{child.ID, other.ID}},
			{"by outcome", LoopFilter{OutcomeHash: "out-a"}, []string{root.ID, other.ID}},
			{"by knowledge", LoopFilter{KnowledgeID: "k-2"}, []string{other.ID}},
			{"by parent", LoopFilter{ParentID: root.ID}, []string{child.ID}},
			{"combined", LoopFilter{Epoch: loop.EpochMapping, OutcomeHash: "out-a"}, []string{other.ID}},
			{"limit", LoopFilter{Limit: 2}, []string{root.ID, child.ID}},
			{"offset", LoopFilter{Offset: 1, Limit: 1}, []string{child.ID}},
			{"no match", LoopFilter{ClassID: "class-none"}, nil},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				loops, err := s.ListLoops(ctx, tt.filter)
				if err != nil {
					t.Fatalf("ListLoops() error = %v", err)
				}
				var ids []string
				for _, l := range loops {
					ids = append(ids, l.ID)
				}
				if !slices.Equal(ids, tt.want) {
					t.Errorf("ListLoops() = %v, want %v", ids, tt.want)
				}

				count, err := s.CountLoops(ctx, tt.filter)
				if err != nil {
					t.Fatalf("CountLoops() error = %v", err)
				}
				if tt.filter.Limit == 0 && count != len(tt.want) {
					t.Errorf("CountLoops() = %d, want %d", count, len(tt.want))
				}
			})
		}
	})
}

func TestLineage(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := newLoop(0, loop.EpochNaive, "o", "k")
		b := newLoop(1, loop.EpochMapping, "o", "k")
		c := newLoop(2, loop.EpochObsession, "o", "k")
		b.ParentID, c.ParentID = a.ID, b.ID
		mustCreate(t, s, a, b, c)

		chain, err := s.Lineage(ctx, c.ID)
		if err != nil {
			t.Fatalf("Lineage() error = %v", err)
		}
		var ids []string
		for _, l := range chain {
			ids = append(ids, l.ID)
		}
		if want := []string{a.ID, b.ID, c.ID}; !slices.Equal(ids, want) {
			t.Errorf("Lineage() = %v, want %v", ids, want)
		}

		if _, err := s.Lineage(ctx, "loop-missing"); !errors.Is(err, loop.ErrNotFound) {
			t.Errorf("Lineage(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestSubLoops(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		parent := newLoop(0, loop.EpochNaive, "o", "k")
		mustCreate(t, s, parent)

		late, _ := loop.NewSubLoop(parent.ID, 6, 9)
		early, _ := loop.NewSubLoop(parent.ID, 2, 4)
		early.AttemptsCount = 12
		early.KnowledgeGained = []string{"bomb_location"}
		for _, sub := range []*loop.SubLoop{late, early} {
			if err := s.CreateSubLoop(ctx, sub); err != nil {
				t.Fatalf("CreateSubLoop() error = %v", err)
			}
		}

		got, err := s.GetSubLoop(ctx, early.ID)
		if err != nil {
			t.Fatalf("GetSubLoop() error = %v", err)
		}
		if got.AttemptsCount != 12 || !slices.Equal(got.KnowledgeGained, []string{"bomb_location"}) || got.Duration() != 2 {
			t.Errorf("GetSubLoop() = %+v", got)
		}

		subs, err := s.ListSubLoops(ctx, parent.ID)
		if err != nil {
			t.Fatalf("ListSubLoops() error = %v", err)
		}
		if len(subs) != 2 || subs[0].ID != early.ID || subs[1].ID != late.ID {
			t.Errorf("ListSubLoops() not ordered by start time: %v", subs)
		}

		orphan, _ := loop.NewSubLoop("loop-missing", 0, 1)
		if err := s.CreateSubLoop(ctx, orphan); !errors.Is(err, loop.ErrNotFound) {
			t.Errorf("CreateSubLoop(orphan) error = %v, want ErrNotFound", err)
		}
		backwards := &loop.SubLoop{ID: loop.NewSubLoopID(), ParentLoopID: parent.ID, StartTime: 5, EndTime: 5, AttemptsCount: 1}
		if err := s.CreateSubLoop(ctx, backwards); !errors.Is(err, loop.ErrInvalidWindow) {
			t.Errorf("CreateSubLoop(empty window) error = %v, want ErrInvalidWindow", err)
		}

		if err := s.DeleteSubLoop(ctx, late.ID); err != nil {
			t.Fatalf("DeleteSubLoop() error = %v", err)
		}
		if err := s.DeleteLoop(ctx, parent.ID); err != nil {
			t.Fatalf("DeleteLoop() error = %v", err)
		}
		if _, err := s.GetSubLoop(ctx, early.ID); !errors.Is(err, loop.ErrNotFound) {
			t.Errorf("sub-loop survived parent deletion: %v", err)
		}
	})
}

func TestAssignClass(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := telemetry.Disabled().WithContext(context.Background())
		a := newLoop(0, loop.EpochNaive, "out", "know")
		b := newLoop(1, loop.EpochNaive, "out", "know")
		c := newLoop(2, loop.EpochNaive, "out", "other")
		mustCreate(t, s, a, b, c)

		first, err := s.AssignClass(ctx, a)
		if err != nil {
			t.Fatalf("AssignClass() error = %v", err)
		}
		second, err := s.AssignClass(ctx, b)
		if err != nil {
			t.Fatalf("AssignClass() error = %v", err)
		}
		third, err := s.AssignClass(ctx, c)
		if err != nil {
			t.Fatalf("AssignClass() error = %v", err)
		}

		if first.ID != second.ID {
			t.Errorf("equivalent loops got classes %s and %s", first.ID, second.ID)
		}
		if third.ID == first.ID {
			t.Error("loops with different knowledge share a class")
		}
		if second.Count != 2 || !slices.Equal(second.SampleIDs, []string{a.ID, b.ID}) || second.RepresentativeID != a.ID {
			t.Errorf("class = %+v", second)
		}

		again, err := s.AssignClass(ctx, b)
		if err != nil || again.Count != 2 {
			t.Errorf("reassigning a classified loop changed the class: %+v, %v", again, err)
		}

		stored, _ := s.GetLoop(ctx, b.ID)
		if stored.ClassID != first.ID {
			t.Errorf("stored ClassID = %q, want %q", stored.ClassID, first.ID)
		}
		found, err := s.FindClass(ctx, "out", "know")
		if err != nil || found.ID != first.ID {
			t.Errorf("FindClass() = %v, %v", found, err)
		}
		if _, err := s.FindClass(ctx, "out", "nobody"); !errors.Is(err, loop.ErrNotFound) {
			t.Errorf("FindClass(missing) error = %v, want ErrNotFound", err)
		}

		members, _ := s.ListLoops(ctx, LoopFilter{ClassID: first.ID})
		if len(members) != 2 {
			t.Errorf("class has %d member loops, want 2", len(members))
		}

		classes, err := s.ListClasses(ctx)
		if err != nil {
			t.Fatalf("ListClasses() error = %v", err)
		}
		if len(classes) != 2 || classes[0].ID != first.ID {
			t.Errorf("ListClasses() not largest first: %v", classes)
		}

		stats, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.TotalLoops != 3 || stats.TotalClasses != 2 || stats.CompressionRatio != 1.5 || stats.LoopsByEpoch["naive"] != 3 {
			t.Errorf("Stats() = %+v", stats)
		}

		if err := s.DeleteClass(ctx, first.ID); err != nil {
			t.Fatalf("DeleteClass() error = %v", err)
		}
		unassigned, _ := s.GetLoop(ctx, a.ID)
		if unassigned.ClassID != "" {
			t.Errorf("ClassID = %q after class deletion", unassigned.ClassID)
		}
		if _, err := s.FindClass(ctx, "out", "know"); !errors.Is(err, loop.ErrNotFound) {
			t.Errorf("FindClass() after delete error = %v", err)
		}
	})
}

func TestClear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		l := newLoop(0, loop.EpochNaive, "o", "k")
		mustCreate(t, s, l)
		if _, err := s.AssignClass(ctx, l); err != nil {
			t.Fatalf("AssignClass() error = %v", err)
		}

		if err := s.Clear(ctx); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		stats, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.TotalLoops != 0 || stats.TotalClasses != 0 || stats.CompressionRatio != 0 {
			t.Errorf("Stats() after Clear = %+v", stats)
		}
		if err := s.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() after Clear error = %v", err)
		}
	})
}

func TestCheckIntegrity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		root := newLoop(0, loop.EpochObsession, "o", "k")
		regressed := newLoop(1, loop.EpochNaive, "o", "k")
		regressed.ParentID = root.ID
		mustCreate(t, s, root, regressed)
		if _, err := s.AssignClass(ctx, root); err != nil {
			t.Fatalf("AssignClass() error = %v", err)
		}

		report, err := CheckIntegrity(ctx, s)
		if err != nil {
			t.Fatalf("CheckIntegrity() error = %v", err)
		}
		if !report.OK() {
			t.Errorf("healthy store reported errors: %v", report.Errors)
		}
		if report.LoopsChecked != 2 || report.ClassesChecked != 1 {
			t.Errorf("checked %d loops, %d classes", report.LoopsChecked, report.ClassesChecked)
		}
		if len(report.Warnings) != 1 {
			t.Errorf("Warnings = %v, want one epoch regression", report.Warnings)
		}

		orphan := newLoop(2, loop.EpochNaive, "o", "k")
		orphan.ParentID = "loop-gone"
		orphan.ClassID = "class-gone"
		mustCreate(t, s, orphan)

		report, err = CheckIntegrity(ctx, s)
		if err != nil {
			t.Fatalf("CheckIntegrity() error = %v", err)
		}
		want := []string{
			"Loop " + orphan.ID + ": Parent loop not found: loop-gone",
			"Loop " + orphan.ID + ": Loop not found in chain: loop-gone",
			"Loop " + orphan.ID + " references missing class class-gone",
		}
		for _, w := range want {
			if !slices.Contains(report.Errors, w) {
				t.Errorf("Errors = %v, missing %q", report.Errors, w)
			}
		}
	})
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "postgres"}); err == nil {
		t.Error("Open() accepted an unknown backend")
	}
}
