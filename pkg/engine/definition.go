package engine

import (
	"fmt"
)

// GraphDefinition is the serialized form of a day graph, shared by the JSON,
// YAML and CUE loaders.
type GraphDefinition struct {
	Meta        MetaDefinition                    `json:"meta" yaml:"meta"`
	Characters  map[string]map[string]interface{} `json:"characters,omitempty" yaml:"characters,omitempty"`
	Locations   []string                          `json:"locations,omitempty" yaml:"locations,omitempty"`
	Facts       FactsDefinition                   `json:"facts" yaml:"facts"`
	Nodes       []NodeDefinition                  `json:"nodes" yaml:"nodes" validate:"dive"`
	Transitions []TransitionDefinition            `json:"transitions" yaml:"transitions" validate:"dive"`
	Outcomes    *OutcomeDefinition                `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// MetaDefinition holds graph metadata.
type MetaDefinition struct {
	Name           string `json:"name" yaml:"name"`
	Description    string `json:"description,omitempty" yaml:"description,omitempty"`
	TotalTimeSlots int    `json:"total_time_slots" yaml:"total_time_slots" validate:"gte=0"`
	Version        string `json:"version" yaml:"version"`
}

// FactsDefinition lists the knowledge and world facts a graph uses.
type FactsDefinition struct {
	Discoverable []string `json:"discoverable" yaml:"discoverable"`
	WorldState   []string `json:"world_state" yaml:"world_state"`
}

// NodeDefinition is the serialized form of an EventNode.
type NodeDefinition struct {
	ID            string   `json:"id" yaml:"id" validate:"required"`
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	TimeSlot      int      `json:"time_slot" yaml:"time_slot" validate:"gte=0"`
	Type          string   `json:"type,omitempty" yaml:"type,omitempty" validate:"omitempty,oneof=critical soft death revelation"`
	Location      string   `json:"location,omitempty" yaml:"location,omitempty"`
	Preconditions []string `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	Effects       []string `json:"effects,omitempty" yaml:"effects,omitempty"`
}

// TransitionDefinition is the serialized form of a Transition. Unset
// TimeCost defaults to 1 and unset Probability to 1.0.
type TransitionDefinition struct {
	From        string   `json:"from" yaml:"from" validate:"required"`
	To          string   `json:"to" yaml:"to" validate:"required"`
	TimeCost    *int     `json:"time_cost,omitempty" yaml:"time_cost,omitempty" validate:"omitempty,gte=0"`
	Conditions  []string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// OutcomeDefinition overrides the default outcome classification rules.
type OutcomeDefinition struct {
	Protagonist string        `json:"protagonist,omitempty" yaml:"protagonist,omitempty"`
	Rules       []OutcomeRule `json:"rules,omitempty" yaml:"rules,omitempty" validate:"dive"`
	Endings     []EndingRule  `json:"endings,omitempty" yaml:"endings,omitempty" validate:"dive"`
}

// BuildGraph parses every predicate and effect once and assembles a DayGraph.
// Duplicate node ids, transitions to unknown nodes, malformed predicates and
// out-of-range probabilities are reported as validation errors.
func BuildGraph(def *GraphDefinition) (*DayGraph, error) {
	g := NewDayGraph(def.Meta.Name, def.Meta.TotalTimeSlots)
	g.Description = def.Meta.Description
	if def.Meta.Version != "" {
		g.Version = def.Meta.Version
	}
	if def.Characters != nil {
		g.Characters = def.Characters
	}
	g.Locations = def.Locations
	g.DiscoverableFacts = def.Facts.Discoverable
	g.WorldStateFacts = def.Facts.WorldState

	for _, nd := range def.Nodes {
		node, err := buildNode(nd)
		if err != nil {
			return nil, err
		}
		if g.HasNode(node.ID) {
			return nil, NewValidationError(node.ID, "duplicate node id").WithCode(ErrCodeInvalidGraph)
		}
		g.nodes = append(g.nodes, node)
		g.index[node.ID] = node
	}

	for i, td := range def.Transitions {
		t, err := buildTransition(td)
		if err != nil {
			return nil, err
		}
		if !g.HasNode(t.From) || !g.HasNode(t.To) {
			return nil, NewValidationError(fmt.Sprintf("%s->%s", t.From, t.To), "transition references unknown node").
				WithCode(ErrCodeInvalidGraph).
				WithDetail("index", i)
		}
		g.transitions = append(g.transitions, t)
	}
	g.rebuildEdges()

	if def.Outcomes != nil {
		c := &RuleClassifier{
			Protagonist: def.Outcomes.Protagonist,
			Rules:       def.Outcomes.Rules,
			Endings:     def.Outcomes.Endings,
		}
		for _, r := range c.Rules {
			if r.Fate != FateSurvives && r.Fate != FateDies {
				return nil, NewValidationError(r.Fact, fmt.Sprintf("unknown fate %q", r.Fate)).WithCode(ErrCodeInvalidGraph)
			}
		}
		g.SetClassifier(c)
	}

	return g, nil
}

func buildNode(nd NodeDefinition) (*EventNode, error) {
	if nd.ID == "" {
		return nil, NewValidationError("", "node id is required").WithCode(ErrCodeInvalidGraph)
	}
	nodeType, err := ParseNodeType(nd.Type)
	if err != nil {
		return nil, NewValidationError(nd.ID, err.Error()).WithCode(ErrCodeInvalidGraph)
	}
	pre, err := parseAll(nd.Preconditions, ParseNodePredicate)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nd.ID, err)
	}
	effects, err := parseAll(nd.Effects, ParseEffect)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nd.ID, err)
	}

	name := nd.Name
	if name == "" {
		name = nd.ID
	}
	return &EventNode{
		ID:            nd.ID,
		Name:          name,
		Description:   nd.Description,
		TimeSlot:      nd.TimeSlot,
		Type:          nodeType,
		Location:      nd.Location,
		Preconditions: pre,
		Effects:       effects,
	}, nil
}

func buildTransition(td TransitionDefinition) (*Transition, error) {
	subject := fmt.Sprintf("%s->%s", td.From, td.To)
	conds, err := parseAll(td.Conditions, ParseTransitionCondition)
	if err != nil {
		return nil, fmt.Errorf("transition %s: %w", subject, err)
	}

	t := &Transition{From: td.From, To: td.To, TimeCost: 1, Conditions: conds, Probability: 1.0}
	if td.TimeCost != nil {
		t.TimeCost = *td.TimeCost
	}
	if td.Probability != nil {
		t.Probability = *td.Probability
	}
	if !(t.Probability >= 0 && t.Probability <= 1) {
		return nil, NewValidationError(subject, fmt.Sprintf("probability %v outside [0, 1]", t.Probability)).
			WithCode(ErrCodeInvalidGraph)
	}
	return t, nil
}

// Definition converts the graph back into its serialized form.
func (g *DayGraph) Definition() *GraphDefinition {
	def := &GraphDefinition{
		Meta: MetaDefinition{
			Name:           g.Name,
			Description:    g.Description,
			TotalTimeSlots: g.TotalTimeSlots,
			Version:        g.Version,
		},
		Characters: g.Characters,
		Locations:  g.Locations,
		Facts: FactsDefinition{
			Discoverable: g.DiscoverableFacts,
			WorldState:   g.WorldStateFacts,
		},
		Nodes:       make([]NodeDefinition, 0, len(g.nodes)),
		Transitions: make([]TransitionDefinition, 0, len(g.transitions)),
	}

	for _, n := range g.nodes {
		nd := NodeDefinition{
			ID:          n.ID,
			Name:        n.Name,
			Description: n.Description,
			TimeSlot:    n.TimeSlot,
			Type:        string(n.Type),
			Location:    n.Location,
		}
		for _, p := range n.Preconditions {
			nd.Preconditions = append(nd.Preconditions, p.String())
		}
		for _, e := range n.Effects {
			nd.Effects = append(nd.Effects, e.String())
		}
		def.Nodes = append(def.Nodes, nd)
	}

	for _, t := range g.transitions {
		cost, prob := t.TimeCost, t.Probability
		td := TransitionDefinition{From: t.From, To: t.To, TimeCost: &cost, Probability: &prob}
		for _, c := range t.Conditions {
			td.Conditions = append(td.Conditions, c.String())
		}
		def.Transitions = append(def.Transitions, td)
	}

	if rc, ok := g.classifier.(*RuleClassifier); ok {
		def.Outcomes = &OutcomeDefinition{Protagonist: rc.Protagonist, Rules: rc.Rules, Endings: rc.Endings}
	}

	return def
}
