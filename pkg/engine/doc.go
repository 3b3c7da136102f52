// Package engine models a single day as a directed, time-ordered graph of
// events and simulates traversals ("loops") through it.
//
// # Overview
//
// A DayGraph owns EventNodes and the Transitions between them. Each node sits
// at a time slot and has a type (critical, soft, death, revelation),
// preconditions that must hold to enter it, and effects applied on entry.
// Each transition has conditions, a time cost, and a probability.
//
// # Predicate Grammar
//
// Predicates and effects are written as strings in graph definitions and
// parsed once into tagged values when the graph is built:
//
//   - Node preconditions: KNOW:x (x is known), NOT:x (x is neither known nor
//     a world fact), AT:x (location, always holds here), bare x (known or a fact)
//   - Transition conditions: KNOW:x, NOT:KNOW:x (x is not known), NOT:x (x is
//     not a world fact), bare x
//   - Effects: LEARN:x (add knowledge), SET:x or bare x (add fact), UNSET:x
//     (remove fact)
//
// # Traversal
//
// ValidChoices is the single place where choice legality is decided: an
// outgoing transition is a valid choice when its own conditions hold and its
// target's preconditions hold. Simulate walks a caller-supplied decision
// sequence and reports the first illegal step as a result value. FindPaths is
// a breadth-first search whose frontier entries carry their own path,
// knowledge, and facts, because legality depends on state.
//
// # Analysis
//
//   - ReachabilityMap: state-aware set of nodes reachable from a node
//   - ChokePoints: critical nodes whose removal makes a death node structurally unreachable
//   - Validate: structural lint (start node, orphans, time reversal, dead ends)
//   - ToDOT: Graphviz rendering
//
// # Determinism
//
// Every randomized helper takes an explicit *rand.Rand. Use NewRand(seed) for
// reproducible walks. Simulate only draws randomness when Probabilistic is set.
//
// # Error Classification
//
// Domain failures such as unreachable targets or unmet preconditions are
// reported in result values. EngineError is reserved for construction-time
// problems (malformed definitions) and infrastructure failures:
//
//	if IsTransient(err) {
//	    // Retry the operation
//	}
//
// # Thread Safety
//
// A DayGraph may be read from many goroutines once construction is complete.
// Mutating methods (AddNode, RemoveNode, AddTransition, RemoveTransition,
// SetClassifier) must not run concurrently with readers.
package engine
