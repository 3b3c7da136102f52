package engine

import (
	"fmt"
	"strings"
)

// PredicateKind identifies how a predicate is evaluated against state.
type PredicateKind uint8

const (
	// PredicateHolds requires the item in world facts or knowledge (bare token).
	PredicateHolds PredicateKind = iota

	// PredicateKnows requires the item in knowledge (KNOW:x).
	PredicateKnows

	// PredicateAbsent requires the item in neither knowledge nor facts (node NOT:x).
	PredicateAbsent

	// PredicateNotKnown requires the item not in knowledge (transition NOT:KNOW:x).
	PredicateNotKnown

	// PredicateNotFact requires the item not in world facts (transition NOT:x).
	PredicateNotFact

	// PredicateAt names a location; it always holds at this layer (node AT:x).
	PredicateAt
)

// String returns the name of the predicate kind.
func (k PredicateKind) String() string {
	switch k {
	case PredicateHolds:
		return "holds"
	case PredicateKnows:
		return "knows"
	case PredicateAbsent:
		return "absent"
	case PredicateNotKnown:
		return "not_known"
	case PredicateNotFact:
		return "not_fact"
	case PredicateAt:
		return "at"
	default:
		return fmt.Sprintf("predicate(%d)", uint8(k))
	}
}

// Predicate is a parsed precondition or traversal condition.
type Predicate struct {
	Kind  PredicateKind
	Value string
	raw   string
}

// String returns the predicate in its source form.
func (p Predicate) String() string {
	if p.raw != "" {
		return p.raw
	}
	switch p.Kind {
	case PredicateKnows:
		return "KNOW:" + p.Value
	case PredicateAbsent, PredicateNotFact:
		return "NOT:" + p.Value
	case PredicateNotKnown:
		return "NOT:KNOW:" + p.Value
	case PredicateAt:
		return "AT:" + p.Value
	default:
		return p.Value
	}
}

// Eval reports whether the predicate holds for the given state.
func (p Predicate) Eval(knowledge, facts Set) bool {
	switch p.Kind {
	case PredicateKnows:
		return knowledge.Has(p.Value)
	case PredicateAbsent:
		return !knowledge.Has(p.Value) && !facts.Has(p.Value)
	case PredicateNotKnown:
		return !knowledge.Has(p.Value)
	case PredicateNotFact:
		return !facts.Has(p.Value)
	case PredicateAt:
		return true
	default:
		return facts.Has(p.Value) || knowledge.Has(p.Value)
	}
}

// ParseNodePredicate parses a node precondition: KNOW:x, NOT:x, AT:x, or a bare token.
func ParseNodePredicate(s string) (Predicate, error) {
	p := Predicate{raw: s}
	switch {
	case strings.HasPrefix(s, "KNOW:"):
		p.Kind, p.Value = PredicateKnows, s[len("KNOW:"):]
	case strings.HasPrefix(s, "NOT:"):
		p.Kind, p.Value = PredicateAbsent, s[len("NOT:"):]
	case strings.HasPrefix(s, "AT:"):
		p.Kind, p.Value = PredicateAt, s[len("AT:"):]
	default:
		p.Kind, p.Value = PredicateHolds, s
	}
	if p.Value == "" {
		return Predicate{}, invalidPredicate(s)
	}
	return p, nil
}

// ParseTransitionCondition parses a transition condition: KNOW:x,
// NOT:KNOW:x, NOT:x, or a bare token. NOT:x on a transition only checks
// world facts.
func ParseTransitionCondition(s string) (Predicate, error) {
	p := Predicate{raw: s}
	switch {
	case strings.HasPrefix(s, "KNOW:"):
		p.Kind, p.Value = PredicateKnows, s[len("KNOW:"):]
	case strings.HasPrefix(s, "NOT:KNOW:"):
		p.Kind, p.Value = PredicateNotKnown, s[len("NOT:KNOW:"):]
	case strings.HasPrefix(s, "NOT:"):
		p.Kind, p.Value = PredicateNotFact, s[len("NOT:"):]
	default:
		p.Kind, p.Value = PredicateHolds, s
	}
	if p.Value == "" {
		return Predicate{}, invalidPredicate(s)
	}
	return p, nil
}

// EffectKind identifies how an effect mutates state.
type EffectKind uint8

const (
	// EffectSet adds the item to world facts (SET:x or a bare token).
	EffectSet EffectKind = iota

	// EffectLearn adds the item to knowledge (LEARN:x).
	EffectLearn

	// EffectUnset removes the item from world facts (UNSET:x).
	EffectUnset
)

// Effect is a parsed node effect.
type Effect struct {
	Kind  EffectKind
	Value string
	raw   string
}

// String returns the effect in its source form.
func (e Effect) String() string {
	if e.raw != "" {
		return e.raw
	}
	switch e.Kind {
	case EffectLearn:
		return "LEARN:" + e.Value
	case EffectUnset:
		return "UNSET:" + e.Value
	default:
		return "SET:" + e.Value
	}
}

// Apply mutates knowledge and facts in place.
func (e Effect) Apply(knowledge, facts Set) {
	switch e.Kind {
	case EffectLearn:
		knowledge.Add(e.Value)
	case EffectUnset:
		facts.Remove(e.Value)
	default:
		facts.Add(e.Value)
	}
}

// ParseEffect parses LEARN:x, SET:x, UNSET:x, or a bare token.
func ParseEffect(s string) (Effect, error) {
	e := Effect{raw: s}
	switch {
	case strings.HasPrefix(s, "LEARN:"):
		e.Kind, e.Value = EffectLearn, s[len("LEARN:"):]
	case strings.HasPrefix(s, "SET:"):
		e.Kind, e.Value = EffectSet, s[len("SET:"):]
	case strings.HasPrefix(s, "UNSET:"):
		e.Kind, e.Value = EffectUnset, s[len("UNSET:"):]
	default:
		e.Kind, e.Value = EffectSet, s
	}
	if e.Value == "" {
		return Effect{}, NewValidationError(s, "empty effect").WithCode(ErrCodeInvalidPredicate)
	}
	return e, nil
}

func invalidPredicate(s string) error {
	return NewValidationError(s, "empty predicate").WithCode(ErrCodeInvalidPredicate)
}

// parseAll applies parse to every source string, returning the first failure.
func parseAll[T any](sources []string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, 0, len(sources))
	for _, s := range sources {
		v, err := parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// MustNodePredicates parses node preconditions and panics on malformed input.
// It is intended for graphs built in code.
func MustNodePredicates(sources ...string) []Predicate {
	return must(parseAll(sources, ParseNodePredicate))
}

// MustConditions parses transition conditions and panics on malformed input.
func MustConditions(sources ...string) []Predicate {
	return must(parseAll(sources, ParseTransitionCondition))
}

// MustEffects parses effects and panics on malformed input.
func MustEffects(sources ...string) []Effect {
	return must(parseAll(sources, ParseEffect))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
