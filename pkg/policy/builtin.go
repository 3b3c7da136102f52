package policy

// Names of the built-in policies.
const (
	PolicyDeathTerminal     = "death-terminal"
	PolicyRevelationTeaches = "revelation-teaches"
	PolicyUnknownKnowledge  = "unknown-knowledge"
	PolicySingleStart       = "single-start"
	PolicyPredicateSyntax   = "predicate-syntax"
	PolicyHorizon           = "time-horizon"
	PolicyDeadTransition    = "dead-transition"
)

// grammar is loaded into data.loopctl.grammar. Each list holds the strings
// that parse to an empty predicate or effect.
func grammar() map[string]interface{} {
	return map[string]interface{}{
		"preconditions": []interface{}{"", "KNOW:", "NOT:", "AT:"},
		"conditions":    []interface{}{"", "KNOW:", "NOT:KNOW:", "NOT:"},
		"effects":       []interface{}{"", "LEARN:", "SET:", "UNSET:"},
	}
}

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	policies := []Policy{
		deathTerminalPolicy(),
		revelationTeachesPolicy(),
		unknownKnowledgePolicy(),
		singleStartPolicy(),
		predicateSyntaxPolicy(),
		horizonPolicy(),
		deadTransitionPolicy(),
	}
	for i := range policies {
		policies[i].Enabled = true
		policies[i].Builtin = true
	}
	return policies
}

// deathTerminalPolicy flags death nodes with exits; the walk stops on death
// so those transitions are never taken.
func deathTerminalPolicy() Policy {
	return Policy{
		Name:        PolicyDeathTerminal,
		Description: "Death nodes end the loop and must not have outgoing transitions",
		Severity:    SeverityError,
		Tags:        []string{"structure"},
		Rego: `package loopctl.lint.death_terminal

import rego.v1

deny contains violation if {
	some node in input.graph.nodes
	node.type == "death"
	some t in input.graph.transitions
	t.from == node.id
	violation := {
		"subject": node.id,
		"message": sprintf("death node %s has an outgoing transition to %s", [node.id, t.to]),
	}
}
`,
	}
}

// revelationTeachesPolicy flags revelation nodes that grant nothing.
func revelationTeachesPolicy() Policy {
	return Policy{
		Name:        PolicyRevelationTeaches,
		Description: "Revelation nodes must teach at least one fact",
		Severity:    SeverityWarning,
		Tags:        []string{"knowledge"},
		Rego: `package loopctl.lint.revelation_teaches

import rego.v1

teaches(node) if {
	some e in node.effects
	startswith(e, "LEARN:")
}

deny contains violation if {
	some node in input.graph.nodes
	node.type == "revelation"
	not teaches(node)
	violation := {
		"subject": node.id,
		"message": sprintf("revelation node %s has no LEARN: effect", [node.id]),
	}
}
`,
	}
}

// unknownKnowledgePolicy flags KNOW: references to facts nothing teaches.
func unknownKnowledgePolicy() Policy {
	return Policy{
		Name:        PolicyUnknownKnowledge,
		Description: "Knowledge checks must name facts that some node teaches or the graph declares discoverable",
		Severity:    SeverityWarning,
		Tags:        []string{"knowledge"},
		Rego: `package loopctl.lint.unknown_knowledge

import rego.v1

learnable contains fact if {
	some node in input.graph.nodes
	some e in node.effects
	startswith(e, "LEARN:")
	fact := substring(e, 6, -1)
}

learnable contains fact if {
	some fact in input.graph.facts.discoverable
}

required contains [subject, fact] if {
	some node in input.graph.nodes
	some p in node.preconditions
	startswith(p, "KNOW:")
	subject := node.id
	fact := substring(p, 5, -1)
}

required contains [subject, fact] if {
	some t in input.graph.transitions
	some c in t.conditions
	some prefix in ["KNOW:", "NOT:KNOW:"]
	startswith(c, prefix)
	subject := sprintf("%s->%s", [t.from, t.to])
	fact := substring(c, count(prefix), -1)
}

deny contains violation if {
	some pair in required
	subject := pair[0]
	fact := pair[1]
	fact != ""
	not learnable[fact]
	violation := {
		"subject": subject,
		"message": sprintf("%s checks knowledge %s that no node teaches", [subject, fact]),
	}
}
`,
	}
}

// singleStartPolicy flags graphs with no node, or several nodes, at slot 0.
func singleStartPolicy() Policy {
	return Policy{
		Name:        PolicySingleStart,
		Description: "Exactly one node should sit at time slot 0",
		Severity:    SeverityWarning,
		Tags:        []string{"structure"},
		Rego: `package loopctl.lint.single_start

import rego.v1

starts := [node.id | some node in input.graph.nodes; node.time_slot == 0]

deny contains violation if {
	count(starts) == 0
	violation := {
		"subject": "graph",
		"message": "no node at time slot 0",
		"severity": "error",
	}
}

deny contains violation if {
	count(starts) > 1
	violation := {
		"subject": starts[0],
		"message": sprintf("%d nodes at time slot 0 (%s); %s is used as the start", [count(starts), concat(", ", starts), starts[0]]),
	}
}
`,
	}
}

// predicateSyntaxPolicy flags predicates and effects that name nothing.
// Graph building rejects them one at a time; the lint reports them all.
func predicateSyntaxPolicy() Policy {
	return Policy{
		Name:        PolicyPredicateSyntax,
		Description: "Preconditions, conditions and effects must name a fact",
		Severity:    SeverityError,
		Tags:        []string{"syntax"},
		Rego: `package loopctl.lint.predicate_syntax

import rego.v1

deny contains violation if {
	some node in input.graph.nodes
	some p in node.preconditions
	p in data.loopctl.grammar.preconditions
	violation := {
		"subject": node.id,
		"message": sprintf("precondition '%s' on %s names nothing", [p, node.id]),
	}
}

deny contains violation if {
	some node in input.graph.nodes
	some e in node.effects
	e in data.loopctl.grammar.effects
	violation := {
		"subject": node.id,
		"message": sprintf("effect '%s' on %s names nothing", [e, node.id]),
	}
}

deny contains violation if {
	some t in input.graph.transitions
	some c in t.conditions
	c in data.loopctl.grammar.conditions
	subject := sprintf("%s->%s", [t.from, t.to])
	violation := {
		"subject": subject,
		"message": sprintf("condition '%s' on %s names nothing", [c, subject]),
	}
}
`,
	}
}

// horizonPolicy flags nodes scheduled after the last time slot.
func horizonPolicy() Policy {
	return Policy{
		Name:        PolicyHorizon,
		Description: "Node time slots must fall inside the day",
		Severity:    SeverityWarning,
		Tags:        []string{"time"},
		Rego: `package loopctl.lint.time_horizon

import rego.v1

deny contains violation if {
	total := input.graph.meta.total_time_slots
	total > 0
	some node in input.graph.nodes
	node.time_slot >= total
	violation := {
		"subject": node.id,
		"message": sprintf("%s is at slot %d but the day has %d slots", [node.id, node.time_slot, total]),
	}
}
`,
	}
}

// deadTransitionPolicy flags transitions that can never succeed.
func deadTransitionPolicy() Policy {
	return Policy{
		Name:        PolicyDeadTransition,
		Description: "Transitions with probability 0 never succeed",
		Severity:    SeverityWarning,
		Tags:        []string{"structure"},
		Rego: `package loopctl.lint.dead_transition

import rego.v1

deny contains violation if {
	some t in input.graph.transitions
	t.probability == 0
	violation := {
		"subject": sprintf("%s->%s", [t.from, t.to]),
		"message": "probability is 0 so the transition never succeeds",
	}
}
`,
	}
}
