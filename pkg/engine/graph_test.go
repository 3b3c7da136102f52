package engine

import (
	"slices"
	"strings"
	"testing"
)

func sampleGraph(t *testing.T) *DayGraph {
	t.Helper()
	g, err := BuildGraph(SampleDefinition())
	if err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	return g
}

func node(id string, slot int, typ NodeType) *EventNode {
	return &EventNode{ID: id, Name: id, TimeSlot: slot, Type: typ}
}

func edge(from, to string, conditions ...string) *Transition {
	return &Transition{From: from, To: to, TimeCost: 1, Probability: 1, Conditions: MustConditions(conditions...)}
}

func TestDayGraph_Queries(t *testing.T) {
	g := sampleGraph(t)

	if start := g.StartNode(); start == nil || start.ID != "start" {
		t.Fatalf("StartNode() = %v, want start", start)
	}
	if got := len(g.Nodes()); got != 6 {
		t.Errorf("len(Nodes()) = %d, want 6", got)
	}
	if got := len(g.Transitions()); got != 7 {
		t.Errorf("len(Transitions()) = %d, want 7", got)
	}

	if crit := g.CriticalNodes(); len(crit) != 1 || crit[0].ID != "choice_a" {
		t.Errorf("CriticalNodes() = %v", crit)
	}
	if deaths := g.DeathNodes(); len(deaths) != 1 || deaths[0].ID != "death" {
		t.Errorf("DeathNodes() = %v", deaths)
	}
	if revs := g.RevelationNodes(); len(revs) != 1 || revs[0].ID != "revelation" {
		t.Errorf("RevelationNodes() = %v", revs)
	}

	var atOne []string
	for _, n := range g.NodesAt(1) {
		atOne = append(atOne, n.ID)
	}
	if !slices.Equal(atOne, []string{"choice_a", "choice_b"}) {
		t.Errorf("NodesAt(1) = %v", atOne)
	}

	if got := len(g.TransitionsFrom("choice_a")); got != 2 {
		t.Errorf("TransitionsFrom(choice_a) = %d, want 2", got)
	}
	if got := len(g.TransitionsTo("death")); got != 3 {
		t.Errorf("TransitionsTo(death) = %d, want 3", got)
	}

	keys := g.KeyDecisions()
	if keys["choice_a"] != 0 || keys["choice_b"] != 1 || keys["revelation"] != 2 {
		t.Errorf("KeyDecisions() = %v", keys)
	}
}

func TestDayGraph_StartNodeIsFirstAtSlotZero(t *testing.T) {
	g := NewDayGraph("", 0)
	g.AddNode(node("later", 2, NodeTypeSoft))
	g.AddNode(node("first", 0, NodeTypeSoft))
	g.AddNode(node("second", 0, NodeTypeSoft))

	if start := g.StartNode(); start == nil || start.ID != "first" {
		t.Errorf("StartNode() = %v, want first", start)
	}
	if g.Name != DefaultGraphName || g.TotalTimeSlots != DefaultTotalTimeSlots {
		t.Errorf("defaults not applied: %q %d", g.Name, g.TotalTimeSlots)
	}
}

func TestDayGraph_Mutation(t *testing.T) {
	g := NewDayGraph("mutation", 4)
	g.AddNode(node("a", 0, NodeTypeSoft))
	g.AddNode(node("b", 1, NodeTypeSoft))
	g.AddNode(node("c", 2, NodeTypeSoft))

	if g.AddTransition(edge("a", "missing")) {
		t.Error("AddTransition to unknown node should fail")
	}
	if !g.AddTransition(edge("a", "b")) || !g.AddTransition(edge("b", "c")) {
		t.Fatal("AddTransition between known nodes failed")
	}
	if len(g.TransitionsFrom("a")) != 1 || len(g.TransitionsTo("c")) != 1 {
		t.Fatal("edge caches not updated")
	}

	if !g.RemoveTransition("a", "b") {
		t.Error("RemoveTransition(a, b) = false")
	}
	if g.RemoveTransition("a", "b") {
		t.Error("second RemoveTransition(a, b) = true")
	}
	if len(g.TransitionsFrom("a")) != 0 {
		t.Error("edge cache still holds removed transition")
	}

	if !g.RemoveNode("b") {
		t.Fatal("RemoveNode(b) = false")
	}
	if g.HasNode("b") || len(g.Transitions()) != 0 || len(g.TransitionsTo("c")) != 0 {
		t.Error("RemoveNode left node or edges behind")
	}
	if g.RemoveNode("b") {
		t.Error("RemoveNode of missing node = true")
	}

	// Replacing a node keeps its position.
	g.AddNode(&EventNode{ID: "a", Name: "renamed", TimeSlot: 0})
	if ids := g.NodeIDs(); !slices.Equal(ids, []string{"a", "c"}) || g.Node("a").Name != "renamed" {
		t.Errorf("replace changed order or content: %v", ids)
	}
}

func TestDayGraph_ValidChoices(t *testing.T) {
	g := NewDayGraph("choices", 4)
	g.AddNode(node("s", 0, NodeTypeSoft))
	g.AddNode(node("open", 1, NodeTypeSoft))
	g.AddNode(&EventNode{ID: "locked", TimeSlot: 1, Preconditions: MustNodePredicates("KNOW:CODE")})
	g.AddNode(node("guarded", 1, NodeTypeSoft))
	g.AddTransition(edge("s", "open"))
	g.AddTransition(edge("s", "locked"))
	g.AddTransition(edge("s", "guarded", "NOT:ALARM"))

	ids := func(ts []*Transition) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.To)
		}
		return out
	}

	if got := ids(g.ValidChoices("s", NewSet(), NewSet())); !slices.Equal(got, []string{"open", "guarded"}) {
		t.Errorf("ValidChoices(empty) = %v", got)
	}
	if got := ids(g.ValidChoices("s", NewSet("CODE"), NewSet("ALARM"))); !slices.Equal(got, []string{"open", "locked"}) {
		t.Errorf("ValidChoices(CODE, ALARM) = %v", got)
	}
}

func TestDayGraph_ToDOT(t *testing.T) {
	g := sampleGraph(t)
	dot := g.ToDOT([]string{"start", "choice_a"})

	for _, want := range []string{
		`digraph "Sample Day" {`,
		"subgraph cluster_t0",
		"subgraph cluster_t3",
		`"start" -> "choice_a" [style=solid, penwidth=3];`,
		`"choice_a" -> "death" [style=solid, color=gray, xlabel="p=0.50"];`,
		`fillcolor="lightcoral"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}
