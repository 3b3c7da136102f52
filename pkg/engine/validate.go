package engine

import "fmt"

// Validate lints the graph structure and returns one diagnostic per problem:
// a missing start node, orphaned nodes with no incoming edges (the start is
// exempt), edges that go back in time, and non-death nodes with no exits
// before the final time slot. It never fails.
func (g *DayGraph) Validate() []string {
	var problems []string

	start := g.StartNode()
	if start == nil {
		problems = append(problems, "No start node (time_slot=0)")
	}

	for _, n := range g.nodes {
		if start != nil && n.ID == start.ID {
			continue
		}
		if len(g.edgesTo[n.ID]) == 0 {
			problems = append(problems, fmt.Sprintf("Orphaned node with no incoming edges: %s", n.ID))
		}
	}

	for _, t := range g.transitions {
		from, to := g.Node(t.From), g.Node(t.To)
		if from == nil || to == nil {
			continue
		}
		if to.TimeSlot < from.TimeSlot {
			problems = append(problems, fmt.Sprintf("Time reversal: %s(t=%d) -> %s(t=%d)",
				t.From, from.TimeSlot, t.To, to.TimeSlot))
		}
	}

	for _, n := range g.nodes {
		if n.IsDeath() {
			continue
		}
		if len(g.edgesFrom[n.ID]) == 0 && n.TimeSlot < g.TotalTimeSlots-1 {
			problems = append(problems, fmt.Sprintf("Dead end (non-death node with no exits): %s", n.ID))
		}
	}

	return problems
}
