package config

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/CrazyDubya/Loop/pkg/engine"
)

// Built-in schema names.
const (
	SchemaDayGraph   = "#DayGraph"
	SchemaNode       = "#Node"
	SchemaTransition = "#Transition"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	// Built-ins are constants; a compile failure is a programming error.
	if err := sr.RegisterSchemas(builtinGraphSchema, SchemaDayGraph, SchemaNode, SchemaTransition); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchemas compiles source and registers each named definition in it.
func (sr *SchemaRegistry) RegisterSchemas(source string, definitions ...string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	for _, name := range definitions {
		def := val.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return fmt.Errorf("schema %s not defined", name)
		}
		sr.schemas[name] = def
	}
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// Unify unifies val with the named schema and validates the result.
func (sr *SchemaRegistry) Unify(schemaName string, val cue.Value) (cue.Value, error) {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return cue.Value{}, fmt.Errorf("schema %s not found", schemaName)
	}

	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return unified, err
	}
	return unified, nil
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(_ context.Context, schemaName string, data interface{}) error {
	// Convert data to CUE value
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if _, err := sr.Unify(schemaName, dataVal); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateGraph validates a graph definition against the #DayGraph schema.
func (sr *SchemaRegistry) ValidateGraph(ctx context.Context, def *engine.GraphDefinition) error {
	return sr.ValidateAgainstSchema(ctx, SchemaDayGraph, def)
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

const builtinGraphSchema = `
#Node: {
	id:           string & !=""
	name?:        string
	description?: string
	time_slot:    int & >=0
	type?:        "critical" | "soft" | "death" | "revelation"
	location?:    string
	preconditions?: [...string]
	effects?: [...string]
}

#Transition: {
	from:         string & !=""
	to:           string & !=""
	time_cost?:   int & >=0
	conditions?: [...string]
	probability?: number & >=0 & <=1
}

#OutcomeRule: {
	fact:      string & !=""
	character: string & !=""
	fate:      "survives" | "dies"
}

#EndingRule: {
	fact:   string & !=""
	ending: string & !=""
}

#DayGraph: {
	meta: {
		name:             string | *""
		description?:     string
		total_time_slots: int & >=0 | *0
		version:          string | *""
	}
	characters?: null | {[string]: {...}}
	locations?: null | [...string]
	facts: {
		discoverable: null | *[] | [...string]
		world_state:  null | *[] | [...string]
	}
	nodes:       null | [...#Node]
	transitions: null | [...#Transition]
	outcomes?: {
		protagonist?: string
		rules?: [...#OutcomeRule]
		endings?: [...#EndingRule]
	}
}
`
