package engine

import (
	"reflect"
	"slices"
	"testing"
)

func TestFindPaths_Scenario(t *testing.T) {
	g := sampleGraph(t)

	paths := g.FindPaths("start", "success", nil, nil, PathOptions{})
	want := [][]string{{"start", "choice_a", "revelation", "success"}}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("FindPaths(start, success) = %v, want %v", paths, want)
	}

	paths = g.FindPaths("start", "death", nil, nil, PathOptions{})
	want = [][]string{
		{"start", "choice_a", "death"},
		{"start", "choice_b", "death"},
		{"start", "choice_a", "revelation", "death"},
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("FindPaths(start, death) = %v, want %v", paths, want)
	}
}

func TestFindPaths_Bounds(t *testing.T) {
	g := sampleGraph(t)

	if paths := g.FindPaths("start", "death", nil, nil, PathOptions{MaxPaths: 2}); len(paths) != 2 {
		t.Errorf("MaxPaths=2 returned %d paths", len(paths))
	}
	if paths := g.FindPaths("start", "success", nil, nil, PathOptions{MaxDepth: 3}); len(paths) != 0 {
		t.Errorf("MaxDepth=3 should discard the four-node path, got %v", paths)
	}
	if paths := g.FindPaths("start", "death", nil, nil, PathOptions{MaxExpansions: 1}); len(paths) != 0 {
		t.Errorf("MaxExpansions=1 returned %v", paths)
	}
	if paths := g.FindPaths("start", "nowhere", nil, nil, PathOptions{}); paths == nil || len(paths) != 0 {
		t.Errorf("unknown goal = %v, want empty", paths)
	}
	if paths := g.FindPaths("start", "start", nil, nil, PathOptions{}); !reflect.DeepEqual(paths, [][]string{{"start"}}) {
		t.Errorf("start == goal = %v", paths)
	}
}

func TestFindPaths_StateThreading(t *testing.T) {
	// Two routes lead to the hub; only the route through the library teaches
	// the password that the vault requires.
	g := NewDayGraph("state", 5)
	g.AddNode(node("s", 0, NodeTypeSoft))
	g.AddNode(&EventNode{ID: "library", TimeSlot: 1, Effects: MustEffects("LEARN:PASSWORD")})
	g.AddNode(node("park", 1, NodeTypeSoft))
	g.AddNode(node("hub", 2, NodeTypeSoft))
	g.AddNode(&EventNode{ID: "vault", TimeSlot: 3, Preconditions: MustNodePredicates("KNOW:PASSWORD")})
	g.AddTransition(edge("s", "park"))
	g.AddTransition(edge("s", "library"))
	g.AddTransition(edge("park", "hub"))
	g.AddTransition(edge("library", "hub"))
	g.AddTransition(edge("hub", "vault"))

	paths := g.FindPaths("s", "vault", nil, nil, PathOptions{})
	want := [][]string{{"s", "library", "hub", "vault"}}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("FindPaths() = %v, want %v", paths, want)
	}

	if !g.IsReachable("s", "vault", nil, nil) {
		t.Error("vault should be reachable via library")
	}
	if g.IsReachable("park", "vault", nil, nil) {
		t.Error("vault should not be reachable from park")
	}
	if !g.IsReachable("park", "vault", NewSet("PASSWORD"), nil) {
		t.Error("vault should be reachable from park with the password known")
	}
}

func TestFindPaths_Acyclic(t *testing.T) {
	g := NewDayGraph("cycle", 4)
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(node(id, 0, NodeTypeSoft))
	}
	g.AddTransition(edge("a", "b"))
	g.AddTransition(edge("b", "a"))
	g.AddTransition(edge("b", "c"))
	g.AddTransition(edge("c", "b"))
	g.AddTransition(edge("c", "d"))
	g.AddTransition(edge("a", "c"))

	paths := g.FindPaths("a", "d", nil, nil, PathOptions{MaxPaths: 50})
	if len(paths) == 0 {
		t.Fatal("expected at least one path")
	}
	for _, p := range paths {
		seen := NewSet()
		for _, id := range p {
			if seen.Has(id) {
				t.Fatalf("path %v revisits %s", p, id)
			}
			seen.Add(id)
		}
	}
}

func TestReachabilityMap(t *testing.T) {
	g := sampleGraph(t)

	got := g.ReachabilityMap("start", nil, nil)
	if !got.Equal(NewSet("start", "choice_a", "choice_b", "revelation", "death", "success")) {
		t.Errorf("ReachabilityMap(start) = %v", got.Sorted())
	}

	got = g.ReachabilityMap("choice_b", nil, nil)
	if !got.Equal(NewSet("choice_b", "death")) {
		t.Errorf("ReachabilityMap(choice_b) = %v", got.Sorted())
	}

	if got := g.ReachabilityMap("missing", nil, nil); len(got) != 0 {
		t.Errorf("ReachabilityMap(missing) = %v", got.Sorted())
	}
}

func TestChokePoints(t *testing.T) {
	g := sampleGraph(t)
	if points := g.ChokePoints(); len(points) != 0 {
		t.Errorf("sample graph choke points = %v, want none", points)
	}

	g = NewDayGraph("choke", 4)
	g.AddNode(node("s", 0, NodeTypeSoft))
	g.AddNode(node("gate", 1, NodeTypeCritical))
	g.AddNode(node("side", 1, NodeTypeCritical))
	g.AddNode(node("trap", 2, NodeTypeDeath))
	g.AddNode(node("fall", 2, NodeTypeDeath))
	g.AddTransition(edge("s", "gate"))
	g.AddTransition(edge("s", "side"))
	g.AddTransition(edge("gate", "trap"))
	g.AddTransition(edge("side", "fall"))
	g.AddTransition(edge("gate", "fall"))

	if points := g.ChokePoints(); !slices.Equal(points, []string{"gate"}) {
		t.Errorf("ChokePoints() = %v, want [gate]", points)
	}

	// A critical start node blocks everything.
	g.Node("s").Type = NodeTypeCritical
	if points := g.ChokePoints(); !slices.Equal(points, []string{"s", "gate"}) {
		t.Errorf("ChokePoints() with critical start = %v", points)
	}
}

func TestChokePoints_UnreachableDeath(t *testing.T) {
	g := NewDayGraph("orphan", 4)
	g.AddNode(node("s", 0, NodeTypeSoft))
	g.AddNode(node("gate", 1, NodeTypeCritical))
	g.AddNode(node("end", 2, NodeTypeSoft))
	g.AddNode(node("orphan", 2, NodeTypeDeath))
	g.AddTransition(edge("s", "gate"))
	g.AddTransition(edge("gate", "end"))

	if points := g.ChokePoints(); len(points) != 0 {
		t.Errorf("ChokePoints() = %v, want none", points)
	}

	// Once the death node hangs off the gate, the gate becomes a choke point.
	g.AddTransition(edge("gate", "orphan"))
	if points := g.ChokePoints(); !slices.Equal(points, []string{"gate"}) {
		t.Errorf("ChokePoints() = %v, want [gate]", points)
	}
}

func TestChokePoints_IgnoresConditions(t *testing.T) {
	g := NewDayGraph("structural", 4)
	g.AddNode(node("s", 0, NodeTypeSoft))
	g.AddNode(node("gate", 1, NodeTypeCritical))
	g.AddNode(node("trap", 2, NodeTypeDeath))
	g.AddTransition(edge("s", "gate", "KNOW:IMPOSSIBLE"))
	g.AddTransition(edge("gate", "trap"))

	if points := g.ChokePoints(); !slices.Equal(points, []string{"gate"}) {
		t.Errorf("ChokePoints() = %v, want [gate]", points)
	}
}
