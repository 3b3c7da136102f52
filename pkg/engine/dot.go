package engine

import (
	"fmt"
	"slices"
	"strings"
)

// ToDOT renders the graph in Graphviz DOT format. Nodes are clustered by time
// slot and colored by type; conditional and probabilistic edges are styled.
// When highlight is non-empty, the nodes and edges of that trace are drawn bold.
func (g *DayGraph) ToDOT(highlight []string) string {
	var sb strings.Builder

	onTrace := NewSet(highlight...)
	traceEdges := NewSet()
	for i := 1; i < len(highlight); i++ {
		traceEdges.Add(highlight[i-1] + "\x00" + highlight[i])
	}

	sb.WriteString(fmt.Sprintf("digraph %q {\n", g.Name))
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=\"filled,rounded\"];\n\n")

	var slots []int
	for _, n := range g.nodes {
		if !slices.Contains(slots, n.TimeSlot) {
			slots = append(slots, n.TimeSlot)
		}
	}
	slices.Sort(slots)

	for _, slot := range slots {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_t%d {\n", slot))
		sb.WriteString(fmt.Sprintf("    label=\"t=%d\";\n", slot))
		sb.WriteString("    style=dashed;\n")

		for _, n := range g.NodesAt(slot) {
			label := n.ID
			if n.Name != "" && n.Name != n.ID {
				label = fmt.Sprintf("%s\\n%s", n.ID, escapeDOT(n.Name))
			}
			attrs := fmt.Sprintf("label=\"%s\", fillcolor=\"%s\"", label, nodeColor(n.Type))
			if onTrace.Has(n.ID) {
				attrs += ", penwidth=3"
			}
			sb.WriteString(fmt.Sprintf("    %q [%s];\n", n.ID, attrs))
		}

		sb.WriteString("  }\n\n")
	}

	for _, t := range g.transitions {
		style := edgeStyle(t)
		if traceEdges.Has(t.From + "\x00" + t.To) {
			style += ", penwidth=3"
		}
		sb.WriteString(fmt.Sprintf("  %q -> %q [%s];\n", t.From, t.To, style))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func nodeColor(t NodeType) string {
	switch t {
	case NodeTypeCritical:
		return "gold"
	case NodeTypeDeath:
		return "lightcoral"
	case NodeTypeRevelation:
		return "lightblue"
	default:
		return "white"
	}
}

func edgeStyle(t *Transition) string {
	var parts []string
	if len(t.Conditions) > 0 {
		conds := make([]string, len(t.Conditions))
		for i, c := range t.Conditions {
			conds[i] = c.String()
		}
		parts = append(parts, "style=dashed", fmt.Sprintf("label=\"%s\"", escapeDOT(strings.Join(conds, "\\n"))))
	} else {
		parts = append(parts, "style=solid")
	}
	if t.Probability < 1 {
		parts = append(parts, "color=gray", fmt.Sprintf("xlabel=\"p=%.2f\"", t.Probability))
	}
	return strings.Join(parts, ", ")
}

func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
