package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type memFinder map[string]*Loop

func (m memFinder) GetLoop(_ context.Context, id string) (*Loop, error) {
	if l, ok := m[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("loop %s: %w", id, ErrNotFound)
}

func (m memFinder) Lineage(ctx context.Context, id string) ([]*Loop, error) {
	var chain []*Loop
	for current := id; current != ""; {
		l, err := m.GetLoop(ctx, current)
		if err != nil {
			return nil, err
		}
		chain = append([]*Loop{l}, chain...)
		current = l.ParentID
	}
	return chain, nil
}

func TestNewLoop(t *testing.T) {
	l := New("")
	if !strings.HasPrefix(l.ID, "loop-") || len(l.ID) != len("loop-")+12 {
		t.Errorf("unexpected loop id %q", l.ID)
	}
	if l.Epoch != EpochNaive {
		t.Errorf("default epoch = %s, want naive", l.Epoch)
	}
	if l.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	l.AddTag(TagDeath)
	l.AddTag(TagDeath)
	if len(l.Tags) != 1 || !l.IsDeathLoop() {
		t.Errorf("tags = %v, want single death tag", l.Tags)
	}

	l.DecisionTrace = []string{"a", "b", "c"}
	if !l.IsShortLoop(ShortLoopThreshold) {
		t.Error("three-node trace should be short")
	}
}

func TestEpochOrdering(t *testing.T) {
	if !IsForwardProgression(EpochNaive, EpochMapping) {
		t.Error("naive -> mapping should be forward")
	}
	if !IsForwardProgression(EpochRuthless, EpochRuthless) {
		t.Error("same epoch should count as forward")
	}
	if IsForwardProgression(EpochSynthesis, EpochNaive) {
		t.Error("synthesis -> naive should be a regression")
	}

	e, err := ParseEpoch(" Obsession ")
	if err != nil || e != EpochObsession {
		t.Errorf("ParseEpoch() = %s, %v", e, err)
	}
	if _, err := ParseEpoch("enlightened"); err == nil {
		t.Error("expected error for unknown epoch")
	}
}

func TestNewSubLoop(t *testing.T) {
	s, err := NewSubLoop("loop-abc", 3, 7)
	if err != nil {
		t.Fatalf("NewSubLoop() error = %v", err)
	}
	if s.Duration() != 4 {
		t.Errorf("Duration() = %d, want 4", s.Duration())
	}
	if s.AttemptsCount != 1 || s.EmotionalEffect != "neutral" {
		t.Errorf("unexpected defaults: %+v", s)
	}
	s.AttemptsCount = 50
	if !s.IsHellLoop(HellLoopThreshold) {
		t.Error("50 attempts should be a hell loop")
	}

	for _, window := range [][2]int{{5, 5}, {6, 2}} {
		if _, err := NewSubLoop("loop-abc", window[0], window[1]); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("NewSubLoop(%d, %d) error = %v, want ErrInvalidWindow", window[0], window[1], err)
		}
	}
}

func TestClass_AddLoop(t *testing.T) {
	l := New(EpochMapping)
	l.OutcomeHash, l.KnowledgeID = "o", "k"

	c := NewClass(l)
	for i := range 10 {
		c.AddLoop(fmt.Sprintf("loop-%d", i))
	}

	if c.Count != 11 {
		t.Errorf("Count = %d, want 11", c.Count)
	}
	if len(c.SampleIDs) != MaxClassSamples {
		t.Errorf("samples = %d, want %d", len(c.SampleIDs), MaxClassSamples)
	}
	if c.RepresentativeID != l.ID || c.SampleIDs[0] != l.ID {
		t.Error("representative should be the founding loop")
	}
	if r := c.CompressionRatio(); r != 11.0/5.0 {
		t.Errorf("CompressionRatio() = %v", r)
	}
}

func TestValidateLoop(t *testing.T) {
	ctx := context.Background()
	parent := New(EpochNaive)
	finder := memFinder{parent.ID: parent}

	child := New(EpochMapping)
	child.ParentID = parent.ID
	problems, err := ValidateLoop(ctx, child, finder)
	if err != nil || len(problems) != 0 {
		t.Fatalf("valid loop reported %v, %v", problems, err)
	}

	orphan := &Loop{ID: "bad-id", ParentID: "bad-id", Epoch: "lost"}
	problems, err = ValidateLoop(ctx, orphan, finder)
	if err != nil {
		t.Fatalf("ValidateLoop() error = %v", err)
	}
	want := []string{
		"Loop ID must start with 'loop-'",
		"Invalid epoch type: lost",
		"Parent loop not found: bad-id",
		"Loop cannot be its own parent",
	}
	if strings.Join(problems, "|") != strings.Join(want, "|") {
		t.Errorf("problems = %v, want %v", problems, want)
	}
}

func TestValidateClass(t *testing.T) {
	ctx := context.Background()
	c := &Class{ID: "class-1", Count: 1, RepresentativeID: "loop-x", SampleIDs: []string{"loop-a", "loop-b"}}

	problems, err := ValidateClass(ctx, c, memFinder{})
	if err != nil {
		t.Fatalf("ValidateClass() error = %v", err)
	}
	for _, want := range []string{
		"LoopClass must have an outcome_hash",
		"sample_ids count exceeds total count",
		"representative_id should be in sample_ids",
		"Sample loop not found: loop-a",
	} {
		found := false
		for _, p := range problems {
			if p == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing problem %q in %v", want, problems)
		}
	}
}

func TestValidateParentChain(t *testing.T) {
	ctx := context.Background()
	a := &Loop{ID: "loop-a", Epoch: EpochNaive}
	b := &Loop{ID: "loop-b", ParentID: "loop-a", Epoch: EpochRuthless}
	c := &Loop{ID: "loop-c", ParentID: "loop-b", Epoch: EpochMapping}
	finder := memFinder{a.ID: a, b.ID: b, c.ID: c}

	problems, err := ValidateParentChain(ctx, "loop-c", finder, 0)
	if err != nil || len(problems) != 0 {
		t.Fatalf("healthy chain reported %v, %v", problems, err)
	}

	problems, _ = ValidateParentChain(ctx, "loop-c", finder, 2)
	if len(problems) != 1 || !strings.Contains(problems[0], "maximum depth of 2") {
		t.Errorf("depth problems = %v", problems)
	}

	a.ParentID = "loop-c"
	problems, _ = ValidateParentChain(ctx, "loop-c", finder, 0)
	if len(problems) != 1 || problems[0] != "Circular reference detected at loop: loop-c" {
		t.Errorf("cycle problems = %v", problems)
	}

	a.ParentID = "loop-missing"
	problems, _ = ValidateParentChain(ctx, "loop-c", finder, 0)
	if len(problems) != 1 || problems[0] != "Loop not found in chain: loop-missing" {
		t.Errorf("missing problems = %v", problems)
	}

	a.ParentID = ""
	warnings, err := ValidateEpochOrdering(ctx, "loop-c", finder)
	if err != nil {
		t.Fatalf("ValidateEpochOrdering() error = %v", err)
	}
	if len(warnings) != 1 || warnings[0] != "Epoch regression: ruthless -> mapping at loop loop-c" {
		t.Errorf("warnings = %v", warnings)
	}
}
