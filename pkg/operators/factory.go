package operators

import (
	"fmt"
	"strings"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

// Kind names an operator.
type Kind string

const (
	KindCause          Kind = "cause"
	KindAvoid          Kind = "avoid"
	KindTrigger        Kind = "trigger"
	KindRelive         Kind = "relive"
	KindSlightlyChange Kind = "slightly_change"
	KindGreatlyChange  Kind = "greatly_change"
)

// Defaults applied when the corresponding Params field is zero.
const (
	DefaultMaxAttempts           = 10
	DefaultChanges               = 1
	DefaultMinDistance           = 3
	DefaultGreatlyChangeAttempts = 20
)

var constructors = map[Kind]func(*engine.DayGraph, Options) Operator{
	KindCause:          func(g *engine.DayGraph, o Options) Operator { return NewCause(g, o) },
	KindAvoid:          func(g *engine.DayGraph, o Options) Operator { return NewAvoid(g, o) },
	KindTrigger:        func(g *engine.DayGraph, o Options) Operator { return NewTrigger(g, o) },
	KindRelive:         func(g *engine.DayGraph, o Options) Operator { return NewRelive(g, o) },
	KindSlightlyChange: func(g *engine.DayGraph, o Options) Operator { return NewSlightlyChange(g, o) },
	KindGreatlyChange:  func(g *engine.DayGraph, o Options) Operator { return NewGreatlyChange(g, o) },
}

// Kinds returns every operator kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindCause, KindAvoid, KindTrigger, KindRelive, KindSlightlyChange, KindGreatlyChange}
}

// ParseKind accepts operator names with either dashes or underscores.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, ok := constructors[k]; !ok {
		return "", engine.NewPermanentError(fmt.Sprintf("unknown operator: %s", s), nil).
			WithCode(engine.ErrCodeUnknownOperator).
			WithSubject(s)
	}
	return k, nil
}

// New returns the operator of the given kind over g.
func New(kind Kind, g *engine.DayGraph, opts Options) (Operator, error) {
	if g == nil {
		return nil, engine.NewValidationError(string(kind), "graph is nil")
	}
	k, err := ParseKind(string(kind))
	if err != nil {
		return nil, err
	}
	return constructors[k](g, opts), nil
}
