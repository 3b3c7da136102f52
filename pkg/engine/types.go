package engine

import (
	"fmt"
	"math/rand/v2"
)

// NodeType classifies an event node.
type NodeType string

const (
	// NodeTypeCritical marks branch points and key decisions.
	NodeTypeCritical NodeType = "critical"

	// NodeTypeSoft marks flavor and atmosphere events.
	NodeTypeSoft NodeType = "soft"

	// NodeTypeDeath marks loop terminators.
	NodeTypeDeath NodeType = "death"

	// NodeTypeRevelation marks knowledge gains.
	NodeTypeRevelation NodeType = "revelation"
)

// ParseNodeType converts a definition string into a NodeType.
// An empty string yields NodeTypeSoft.
func ParseNodeType(s string) (NodeType, error) {
	switch t := NodeType(s); t {
	case "":
		return NodeTypeSoft, nil
	case NodeTypeCritical, NodeTypeSoft, NodeTypeDeath, NodeTypeRevelation:
		return t, nil
	default:
		return "", fmt.Errorf("unknown node type %q", s)
	}
}

// EventNode is a point in the day where something can happen.
type EventNode struct {
	// ID is the unique identifier of the node.
	ID string

	// Name is the human-readable name.
	Name string

	// Description is free-form flavor text.
	Description string

	// TimeSlot is the ordinal time position within the day.
	TimeSlot int

	// Type classifies the node.
	Type NodeType

	// Location is where the event takes place.
	Location string

	// Preconditions must all hold to enter the node.
	Preconditions []Predicate

	// Effects are applied to state when the node is visited.
	Effects []Effect
}

// IsCritical reports whether the node is a branch point.
func (n *EventNode) IsCritical() bool { return n.Type == NodeTypeCritical }

// IsDeath reports whether the node terminates the loop.
func (n *EventNode) IsDeath() bool { return n.Type == NodeTypeDeath }

// IsRevelation reports whether the node grants knowledge.
func (n *EventNode) IsRevelation() bool { return n.Type == NodeTypeRevelation }

// CanEnter reports whether every precondition holds.
func (n *EventNode) CanEnter(knowledge, facts Set) bool {
	for _, p := range n.Preconditions {
		if !p.Eval(knowledge, facts) {
			return false
		}
	}
	return true
}

// ApplyEffects returns copies of knowledge and facts with the node's effects
// applied. The inputs are left untouched.
func (n *EventNode) ApplyEffects(knowledge, facts Set) (Set, Set) {
	k, f := knowledge.Clone(), facts.Clone()
	n.applyEffects(k, f)
	return k, f
}

func (n *EventNode) applyEffects(knowledge, facts Set) {
	for _, e := range n.Effects {
		e.Apply(knowledge, facts)
	}
}

// Transition is a directed, conditionally available edge between two nodes.
type Transition struct {
	// From is the source node id.
	From string

	// To is the target node id.
	To string

	// TimeCost is the number of time slots the transition consumes.
	TimeCost int

	// Conditions must all hold to traverse the edge.
	Conditions []Predicate

	// Probability is the chance in [0, 1] that a probabilistic traversal succeeds.
	Probability float64
}

// CanTraverse reports whether every condition holds.
func (t *Transition) CanTraverse(knowledge, facts Set) bool {
	for _, c := range t.Conditions {
		if !c.Eval(knowledge, facts) {
			return false
		}
	}
	return true
}

// RollSuccess draws against Probability. Probabilities of 1 or more always
// succeed without consuming randomness.
func (t *Transition) RollSuccess(rng *rand.Rand) bool {
	if t.Probability >= 1.0 {
		return true
	}
	return rng.Float64() < t.Probability
}

// WorldState is the mutable state threaded through one traversal.
type WorldState struct {
	TimeSlot     int      `json:"time_slot"`
	CurrentNode  string   `json:"current_node,omitempty"`
	Location     string   `json:"location,omitempty"`
	Knowledge    Set      `json:"knowledge"`
	WorldFacts   Set      `json:"world_facts"`
	VisitedNodes []string `json:"visited_nodes"`
	IsDead       bool     `json:"is_dead"`
	DeathNode    string   `json:"death_node,omitempty"`
}

// NewWorldState returns a fresh state holding copies of knowledge and facts.
func NewWorldState(knowledge, facts Set) *WorldState {
	return &WorldState{
		Knowledge:    knowledge.Clone(),
		WorldFacts:   facts.Clone(),
		VisitedNodes: []string{},
	}
}

// Visit advances the state onto node and applies its effects.
func (s *WorldState) Visit(node *EventNode) {
	s.CurrentNode = node.ID
	s.TimeSlot = node.TimeSlot
	s.Location = node.Location
	s.VisitedNodes = append(s.VisitedNodes, node.ID)

	node.applyEffects(s.Knowledge, s.WorldFacts)

	if node.IsDeath() {
		s.IsDead = true
		s.DeathNode = node.ID
	}
}

// Copy returns a full value copy. Speculative branches must copy before mutating.
func (s *WorldState) Copy() *WorldState {
	c := *s
	c.Knowledge = s.Knowledge.Clone()
	c.WorldFacts = s.WorldFacts.Clone()
	c.VisitedNodes = append(make([]string, 0, len(s.VisitedNodes)), s.VisitedNodes...)
	return &c
}

// Outcome summarizes who lived and died and how the loop ended.
type Outcome struct {
	Survivors    []string `json:"survivors"`
	Deaths       []string `json:"deaths"`
	StateChanges []string `json:"state_changes"`
	EndingType   string   `json:"ending_type"`
}

// SimulationResult is the terminal outcome of one walk.
type SimulationResult struct {
	Success         bool        `json:"success"`
	FinalState      *WorldState `json:"final_state"`
	DecisionTrace   []string    `json:"decision_trace"`
	KnowledgeGained []string    `json:"knowledge_gained"`
	Outcome         Outcome     `json:"outcome"`
	OutcomeHash     string      `json:"outcome_hash"`
	KnowledgeID     string      `json:"knowledge_id"`
	TerminatedEarly bool        `json:"terminated_early"`
	DeathNode       string      `json:"death_node,omitempty"`
	ErrorMessage    string      `json:"error_message,omitempty"`
}
