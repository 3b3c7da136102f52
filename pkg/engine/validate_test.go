package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestValidate_Sample(t *testing.T) {
	if problems := sampleGraph(t).Validate(); len(problems) != 0 {
		t.Errorf("sample graph problems = %v", problems)
	}
}

func TestValidate_Diagnostics(t *testing.T) {
	g := NewDayGraph("broken", 4)
	g.AddNode(node("s", 0, NodeTypeSoft))
	g.AddNode(node("x", 2, NodeTypeSoft))
	g.AddNode(node("y", 1, NodeTypeSoft))
	g.AddNode(node("z", 1, NodeTypeDeath))
	g.AddNode(node("end", 3, NodeTypeSoft))
	g.AddTransition(edge("s", "x"))
	g.AddTransition(edge("x", "y"))
	g.AddTransition(edge("s", "end"))

	want := []string{
		"Orphaned node with no incoming edges: z",
		"Time reversal: x(t=2) -> y(t=1)",
		"Dead end (non-death node with no exits): y",
	}
	if got := g.Validate(); !reflect.DeepEqual(got, want) {
		t.Errorf("Validate() = %v\nwant %v", got, want)
	}
}

func TestValidate_NoStart(t *testing.T) {
	g := NewDayGraph("headless", 0)
	g.AddNode(node("a", 1, NodeTypeSoft))

	want := []string{
		"No start node (time_slot=0)",
		"Orphaned node with no incoming edges: a",
		"Dead end (non-death node with no exits): a",
	}
	if got := g.Validate(); !reflect.DeepEqual(got, want) {
		t.Errorf("Validate() = %v\nwant %v", got, want)
	}
}

func TestBuildGraph_Defaults(t *testing.T) {
	def := &GraphDefinition{
		Nodes: []NodeDefinition{
			{ID: "a", TimeSlot: 0},
			{ID: "b", Name: "Bee", TimeSlot: 1, Type: "revelation"},
		},
		Transitions: []TransitionDefinition{{From: "a", To: "b"}},
	}

	g, err := BuildGraph(def)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if g.Name != DefaultGraphName || g.TotalTimeSlots != DefaultTotalTimeSlots || g.Version != DefaultGraphVersion {
		t.Errorf("meta defaults = %q %d %q", g.Name, g.TotalTimeSlots, g.Version)
	}
	if a := g.Node("a"); a.Type != NodeTypeSoft || a.Name != "a" {
		t.Errorf("node defaults = %+v", a)
	}
	tr := g.TransitionsFrom("a")[0]
	if tr.TimeCost != 1 || tr.Probability != 1.0 {
		t.Errorf("transition defaults = %+v", tr)
	}
	if _, ok := g.Classifier().(*RuleClassifier); !ok {
		t.Error("default classifier should be a RuleClassifier")
	}
}

func TestBuildGraph_Errors(t *testing.T) {
	bad, nan := 1.5, math.NaN()
	tests := []struct {
		name string
		def  *GraphDefinition
	}{
		{"duplicate", &GraphDefinition{Nodes: []NodeDefinition{{ID: "a"}, {ID: "a"}}}},
		{"unknown type", &GraphDefinition{Nodes: []NodeDefinition{{ID: "a", Type: "boss"}}}},
		{"empty predicate", &GraphDefinition{Nodes: []NodeDefinition{{ID: "a", Preconditions: []string{"KNOW:"}}}}},
		{"unknown endpoint", &GraphDefinition{
			Nodes:       []NodeDefinition{{ID: "a"}},
			Transitions: []TransitionDefinition{{From: "a", To: "ghost"}},
		}},
		{"probability", &GraphDefinition{
			Nodes:       []NodeDefinition{{ID: "a"}, {ID: "b", TimeSlot: 1}},
			Transitions: []TransitionDefinition{{From: "a", To: "b", Probability: &bad}},
		}},
		{"probability NaN", &GraphDefinition{
			Nodes:       []NodeDefinition{{ID: "a"}, {ID: "b", TimeSlot: 1}},
			Transitions: []TransitionDefinition{{From: "a", To: "b", Probability: &nan}},
		}},
		{"fate", &GraphDefinition{Outcomes: &OutcomeDefinition{Rules: []OutcomeRule{{Fact: "F", Character: "C", Fate: "vanishes"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildGraph(tt.def)
			if err == nil {
				t.Fatal("expected error")
			}
			var engineErr *EngineError
			if !errors.As(err, &engineErr) || !IsPermanent(err) {
				t.Errorf("error %v is not a permanent EngineError", err)
			}
		})
	}
}

func TestDefinition_RoundTrip(t *testing.T) {
	g := sampleGraph(t)
	def := g.Definition()

	again, err := BuildGraph(def)
	if err != nil {
		t.Fatalf("BuildGraph(Definition()) error = %v", err)
	}
	if !reflect.DeepEqual(again.NodeIDs(), g.NodeIDs()) {
		t.Errorf("node order changed: %v", again.NodeIDs())
	}
	if !reflect.DeepEqual(again.Definition(), def) {
		t.Error("second round trip differs from the first")
	}
	if got := def.Nodes[5].Preconditions; !reflect.DeepEqual(got, []string{"KNOW:SECRET_X"}) {
		t.Errorf("success preconditions = %v", got)
	}
	if got := *def.Transitions[3].Probability; got != 0.5 {
		t.Errorf("probability = %v", got)
	}
}

func TestRuleClassifier_Overrides(t *testing.T) {
	def := SampleDefinition()
	def.Outcomes = &OutcomeDefinition{
		Protagonist: "HERO",
		Rules:       []OutcomeRule{{Fact: "SISTER_ALIVE", Character: "SISTER", Fate: FateSurvives}},
		Endings:     []EndingRule{{Fact: "SISTER_ALIVE", Ending: "rescue"}},
	}
	g, err := BuildGraph(def)
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}

	result := g.Simulate(SimulationInput{Decisions: []string{"start", "choice_a", "revelation", "success"}})
	want := Outcome{
		Survivors:    []string{"HERO", "SISTER"},
		Deaths:       []string{},
		StateChanges: []string{"SISTER_ALIVE"},
		EndingType:   "rescue",
	}
	if !reflect.DeepEqual(result.Outcome, want) {
		t.Errorf("Outcome = %+v, want %+v", result.Outcome, want)
	}
}

func TestDefaultClassifier(t *testing.T) {
	state := NewWorldState(nil, NewSet("SISTER_DEAD", "VILLAIN_ESCAPED", "BOMB_EXPLODED"))
	state.IsDead = true

	got := DefaultClassifier().Classify(state)
	want := Outcome{
		Survivors:    []string{"VILLAIN"},
		Deaths:       []string{"PROTAGONIST", "SISTER"},
		StateChanges: []string{"BOMB_EXPLODED", "SISTER_DEAD", "VILLAIN_ESCAPED"},
		EndingType:   EndingExplosion,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Classify() = %+v, want %+v", got, want)
	}
}
