package engine

import (
	"slices"
)

// Graph defaults applied when a definition leaves them unset.
const (
	DefaultGraphName      = "Unnamed"
	DefaultTotalTimeSlots = 12
	DefaultGraphVersion   = "1.0"
)

// DayGraph owns the event nodes and transitions of one day.
//
// Nodes keep insertion order; the start node is the first node at time slot
// zero. The edge caches are derived from the transition list and rebuilt on
// every topology change. A DayGraph is safe for concurrent reads once it is no
// longer being mutated.
type DayGraph struct {
	// Name is the graph name.
	Name string

	// Description is free-form text describing the day.
	Description string

	// TotalTimeSlots is the number of time slots in the day.
	TotalTimeSlots int

	// Version is the definition version.
	Version string

	// Characters holds per-character metadata, plus the optional
	// "key_decisions" entry mapping decision node ids to bit positions.
	Characters map[string]map[string]interface{}

	// Locations lists the places events happen.
	Locations []string

	// DiscoverableFacts lists knowledge the protagonist can learn.
	DiscoverableFacts []string

	// WorldStateFacts lists world facts events can set.
	WorldStateFacts []string

	nodes       []*EventNode
	index       map[string]*EventNode
	transitions []*Transition
	edgesFrom   map[string][]*Transition
	edgesTo     map[string][]*Transition
	classifier  OutcomeClassifier
}

// NewDayGraph creates an empty graph.
func NewDayGraph(name string, totalTimeSlots int) *DayGraph {
	if name == "" {
		name = DefaultGraphName
	}
	if totalTimeSlots <= 0 {
		totalTimeSlots = DefaultTotalTimeSlots
	}
	g := &DayGraph{
		Name:           name,
		TotalTimeSlots: totalTimeSlots,
		Version:        DefaultGraphVersion,
		Characters:     map[string]map[string]interface{}{},
		index:          map[string]*EventNode{},
	}
	g.rebuildEdges()
	return g
}

// rebuildEdges recomputes edgesFrom and edgesTo from the transition list.
func (g *DayGraph) rebuildEdges() {
	g.edgesFrom = make(map[string][]*Transition, len(g.nodes))
	g.edgesTo = make(map[string][]*Transition, len(g.nodes))
	for _, t := range g.transitions {
		if _, ok := g.index[t.From]; ok {
			g.edgesFrom[t.From] = append(g.edgesFrom[t.From], t)
		}
		if _, ok := g.index[t.To]; ok {
			g.edgesTo[t.To] = append(g.edgesTo[t.To], t)
		}
	}
}

// AddNode inserts node. A node with the same id is replaced in place.
func (g *DayGraph) AddNode(node *EventNode) {
	if _, exists := g.index[node.ID]; exists {
		for i, n := range g.nodes {
			if n.ID == node.ID {
				g.nodes[i] = node
				break
			}
		}
	} else {
		g.nodes = append(g.nodes, node)
	}
	g.index[node.ID] = node
	g.rebuildEdges()
}

// RemoveNode deletes a node and every transition touching it.
func (g *DayGraph) RemoveNode(id string) bool {
	if _, ok := g.index[id]; !ok {
		return false
	}
	delete(g.index, id)
	g.nodes = slices.DeleteFunc(g.nodes, func(n *EventNode) bool { return n.ID == id })
	g.transitions = slices.DeleteFunc(g.transitions, func(t *Transition) bool {
		return t.From == id || t.To == id
	})
	g.rebuildEdges()
	return true
}

// AddTransition appends t. It returns false when either endpoint is unknown.
func (g *DayGraph) AddTransition(t *Transition) bool {
	if _, ok := g.index[t.From]; !ok {
		return false
	}
	if _, ok := g.index[t.To]; !ok {
		return false
	}
	g.transitions = append(g.transitions, t)
	g.rebuildEdges()
	return true
}

// RemoveTransition deletes every transition from -> to.
func (g *DayGraph) RemoveTransition(from, to string) bool {
	before := len(g.transitions)
	g.transitions = slices.DeleteFunc(g.transitions, func(t *Transition) bool {
		return t.From == from && t.To == to
	})
	if len(g.transitions) == before {
		return false
	}
	g.rebuildEdges()
	return true
}

// Node returns the node with id, or nil.
func (g *DayGraph) Node(id string) *EventNode {
	return g.index[id]
}

// HasNode reports whether id names a node.
func (g *DayGraph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *DayGraph) Nodes() []*EventNode {
	return slices.Clone(g.nodes)
}

// NodeIDs returns all node ids in insertion order.
func (g *DayGraph) NodeIDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Transitions returns all transitions in insertion order.
func (g *DayGraph) Transitions() []*Transition {
	return slices.Clone(g.transitions)
}

// TransitionsFrom returns the outgoing transitions of id in insertion order.
func (g *DayGraph) TransitionsFrom(id string) []*Transition {
	return g.edgesFrom[id]
}

// TransitionsTo returns the incoming transitions of id in insertion order.
func (g *DayGraph) TransitionsTo(id string) []*Transition {
	return g.edgesTo[id]
}

// NodesByType returns the nodes of type t.
func (g *DayGraph) NodesByType(t NodeType) []*EventNode {
	var out []*EventNode
	for _, n := range g.nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// NodesAt returns the nodes at time slot.
func (g *DayGraph) NodesAt(slot int) []*EventNode {
	var out []*EventNode
	for _, n := range g.nodes {
		if n.TimeSlot == slot {
			out = append(out, n)
		}
	}
	return out
}

// CriticalNodes returns the branch-point nodes.
func (g *DayGraph) CriticalNodes() []*EventNode { return g.NodesByType(NodeTypeCritical) }

// DeathNodes returns the loop-terminating nodes.
func (g *DayGraph) DeathNodes() []*EventNode { return g.NodesByType(NodeTypeDeath) }

// RevelationNodes returns the knowledge-granting nodes.
func (g *DayGraph) RevelationNodes() []*EventNode { return g.NodesByType(NodeTypeRevelation) }

// StartNode returns the first node at time slot zero, or nil.
func (g *DayGraph) StartNode() *EventNode {
	for _, n := range g.nodes {
		if n.TimeSlot == 0 {
			return n
		}
	}
	return nil
}

// ValidChoices returns the outgoing transitions of id whose own conditions
// and whose target's preconditions both hold.
func (g *DayGraph) ValidChoices(id string, knowledge, facts Set) []*Transition {
	var valid []*Transition
	for _, t := range g.edgesFrom[id] {
		if !t.CanTraverse(knowledge, facts) {
			continue
		}
		if target := g.index[t.To]; target != nil && target.CanEnter(knowledge, facts) {
			valid = append(valid, t)
		}
	}
	return valid
}

// KeyDecisions returns the decision-name to bit-position map declared under
// characters.key_decisions. Non-integral positions are skipped.
func (g *DayGraph) KeyDecisions() map[string]int {
	out := map[string]int{}
	for name, raw := range g.Characters["key_decisions"] {
		switch v := raw.(type) {
		case int:
			out[name] = v
		case int64:
			out[name] = int(v)
		case uint64:
			out[name] = int(v)
		case float64:
			if v == float64(int(v)) {
				out[name] = int(v)
			}
		}
	}
	return out
}

// SetClassifier replaces the outcome classifier used by Simulate.
// A nil classifier restores the default rules.
func (g *DayGraph) SetClassifier(c OutcomeClassifier) {
	g.classifier = c
}

// Classifier returns the outcome classifier in use.
func (g *DayGraph) Classifier() OutcomeClassifier {
	if g.classifier == nil {
		return DefaultClassifier()
	}
	return g.classifier
}
