package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/CrazyDubya/Loop/pkg/engine"
)

// GraphField is the optional top-level field holding the graph in a CUE
// file. Files without it are the graph themselves.
const GraphField = "graph"

// CUEParser parses day graphs written in CUE and checks them against the
// #DayGraph schema.
type CUEParser struct {
	schemaRegistry *SchemaRegistry
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	return &CUEParser{schemaRegistry: NewSchemaRegistry()}
}

// NewCUEParserWithRegistry creates a parser sharing an existing registry.
func NewCUEParserWithRegistry(sr *SchemaRegistry) *CUEParser {
	return &CUEParser{schemaRegistry: sr}
}

// Parse loads a .cue file or a directory holding one CUE package and decodes
// the graph in it. Schema violations are returned as validation errors with
// source positions; the error is non-nil only when the source cannot be read.
func (cp *CUEParser) Parse(_ context.Context, source string) (*engine.GraphDefinition, []ValidationError, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat source %s: %w", source, err)
	}

	var (
		val  cue.Value
		errs []ValidationError
	)
	if info.IsDir() {
		val, errs = cp.loadDirectory(source)
	} else {
		val, errs = cp.loadFile(source)
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}

	def, errs := cp.decode(val)
	return def, errs, nil
}

// ParseInline parses inline CUE content.
func (cp *CUEParser) ParseInline(_ context.Context, content string) (*engine.GraphDefinition, []ValidationError) {
	val := cp.schemaRegistry.ctx.CompileString(content, cue.Filename("inline"))
	if err := val.Err(); err != nil {
		return nil, cp.convertCUEErrors(err)
	}
	return cp.decode(val)
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, cp.convertCUEErrors(inst.Err)
	}

	val := cp.schemaRegistry.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}
	return val, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := cp.schemaRegistry.ctx.CompileBytes(content, cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}
	return val, nil
}

// decode unifies val with #DayGraph and decodes the result.
func (cp *CUEParser) decode(val cue.Value) (*engine.GraphDefinition, []ValidationError) {
	if g := val.LookupPath(cue.ParsePath(GraphField)); g.Exists() {
		val = g
	}

	unified, err := cp.schemaRegistry.Unify(SchemaDayGraph, val)
	if err != nil {
		return nil, cp.convertCUEErrors(err)
	}

	var def engine.GraphDefinition
	if err := unified.Decode(&def); err != nil {
		return nil, []ValidationError{{
			Message:  fmt.Sprintf("failed to decode graph: %v", err),
			Severity: "error",
		}}
	}
	return &def, nil
}

// convertCUEErrors converts CUE errors to ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range errors.Errors(err) {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Path:     strings.Join(e.Path(), "."),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}
