package engine

import (
	"testing"
)

func TestNodePredicates(t *testing.T) {
	tests := []struct {
		source    string
		knowledge Set
		facts     Set
		want      bool
	}{
		{"KNOW:SECRET", NewSet("SECRET"), NewSet(), true},
		{"KNOW:SECRET", NewSet(), NewSet("SECRET"), false},
		{"NOT:ALARM", NewSet(), NewSet(), true},
		{"NOT:ALARM", NewSet("ALARM"), NewSet(), false},
		{"NOT:ALARM", NewSet(), NewSet("ALARM"), false},
		{"AT:station", NewSet(), NewSet(), true},
		{"DOOR_OPEN", NewSet(), NewSet("DOOR_OPEN"), true},
		{"DOOR_OPEN", NewSet("DOOR_OPEN"), NewSet(), true},
		{"DOOR_OPEN", NewSet(), NewSet(), false},
	}

	for _, tt := range tests {
		p, err := ParseNodePredicate(tt.source)
		if err != nil {
			t.Fatalf("ParseNodePredicate(%q) error = %v", tt.source, err)
		}
		if got := p.Eval(tt.knowledge, tt.facts); got != tt.want {
			t.Errorf("%q.Eval(%v, %v) = %v, want %v", tt.source, tt.knowledge.Sorted(), tt.facts.Sorted(), got, tt.want)
		}
		if p.String() != tt.source {
			t.Errorf("String() = %q, want %q", p.String(), tt.source)
		}
	}
}

func TestTransitionConditions(t *testing.T) {
	tests := []struct {
		source    string
		kind      PredicateKind
		knowledge Set
		facts     Set
		want      bool
	}{
		{"KNOW:KEY", PredicateKnows, NewSet("KEY"), NewSet(), true},
		{"NOT:KNOW:KEY", PredicateNotKnown, NewSet("KEY"), NewSet(), false},
		{"NOT:KNOW:KEY", PredicateNotKnown, NewSet(), NewSet("KEY"), true},
		// On a transition NOT:x only consults world facts.
		{"NOT:ALARM", PredicateNotFact, NewSet("ALARM"), NewSet(), true},
		{"NOT:ALARM", PredicateNotFact, NewSet(), NewSet("ALARM"), false},
		{"RAINING", PredicateHolds, NewSet("RAINING"), NewSet(), true},
	}

	for _, tt := range tests {
		p, err := ParseTransitionCondition(tt.source)
		if err != nil {
			t.Fatalf("ParseTransitionCondition(%q) error = %v", tt.source, err)
		}
		if p.Kind != tt.kind {
			t.Errorf("%q parsed as %s, want %s", tt.source, p.Kind, tt.kind)
		}
		if got := p.Eval(tt.knowledge, tt.facts); got != tt.want {
			t.Errorf("%q.Eval() = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestParse_RejectsEmptyValues(t *testing.T) {
	for _, s := range []string{"", "KNOW:", "NOT:", "AT:"} {
		if _, err := ParseNodePredicate(s); err == nil {
			t.Errorf("ParseNodePredicate(%q) accepted empty value", s)
		} else if !HasCode(err, ErrCodeInvalidPredicate) {
			t.Errorf("ParseNodePredicate(%q) error code mismatch: %v", s, err)
		}
	}
	for _, s := range []string{"", "NOT:KNOW:"} {
		if _, err := ParseTransitionCondition(s); err == nil {
			t.Errorf("ParseTransitionCondition(%q) accepted empty value", s)
		}
	}
	for _, s := range []string{"", "LEARN:", "UNSET:"} {
		if _, err := ParseEffect(s); err == nil {
			t.Errorf("ParseEffect(%q) accepted empty value", s)
		}
	}
}

func TestEffects(t *testing.T) {
	n := &EventNode{
		ID:      "n",
		Effects: MustEffects("LEARN:SECRET", "SET:DOOR_OPEN", "ALARM", "UNSET:LIGHTS_ON"),
	}
	knowledge, facts := NewSet(), NewSet("LIGHTS_ON")

	k, f := n.ApplyEffects(knowledge, facts)
	if !k.Equal(NewSet("SECRET")) {
		t.Errorf("knowledge = %v", k.Sorted())
	}
	if !f.Equal(NewSet("DOOR_OPEN", "ALARM")) {
		t.Errorf("facts = %v", f.Sorted())
	}
	if len(knowledge) != 0 || !facts.Has("LIGHTS_ON") {
		t.Error("ApplyEffects mutated its inputs")
	}

	// Applying twice is idempotent.
	k2, f2 := n.ApplyEffects(k, f)
	if !k2.Equal(k) || !f2.Equal(f) {
		t.Error("effects are not idempotent")
	}
}

func TestTransition_RollSuccess(t *testing.T) {
	certain := &Transition{Probability: 1}
	never := &Transition{Probability: 0}
	rng := NewRand(1)

	for range 100 {
		if !certain.RollSuccess(nil) {
			t.Fatal("probability 1 must succeed without drawing")
		}
		if never.RollSuccess(rng) {
			t.Fatal("probability 0 succeeded")
		}
	}
}

func TestWorldState_CopyIsIndependent(t *testing.T) {
	s := NewWorldState(NewSet("K"), NewSet("F"))
	s.Visit(&EventNode{ID: "a", TimeSlot: 1, Location: "home", Effects: MustEffects("LEARN:X")})

	c := s.Copy()
	c.Visit(&EventNode{ID: "b", TimeSlot: 2, Type: NodeTypeDeath, Effects: MustEffects("SET:Y")})

	if s.CurrentNode != "a" || s.IsDead || s.WorldFacts.Has("Y") || len(s.VisitedNodes) != 1 {
		t.Errorf("original state changed after copy was mutated: %+v", s)
	}
	if !c.IsDead || c.DeathNode != "b" || c.TimeSlot != 2 || len(c.VisitedNodes) != 2 {
		t.Errorf("copy state = %+v", c)
	}
}
