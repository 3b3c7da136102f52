package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Graph file formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCUE  = "cue"
)

// FormatOf returns the graph format implied by a file extension. A
// directory is read as a CUE package.
func FormatOf(path string) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return FormatCUE, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported graph file extension %q", filepath.Ext(path))
	}
}

// InvalidGraphError carries every problem found while loading a graph file.
type InvalidGraphError struct {
	Path   string
	Errors []ValidationError
}

func (e *InvalidGraphError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.String())
	}
	return fmt.Sprintf("invalid graph %s: %s", e.Path, strings.Join(msgs, "; "))
}

// GraphLoader reads day graph files in JSON, YAML or CUE, checks them with
// struct tags and the #DayGraph schema, and builds DayGraphs.
type GraphLoader struct {
	cue        *CUEParser
	validator  *validator.Validate
	classifier engine.OutcomeClassifier
}

// NewGraphLoader creates a loader. A non-nil classifier replaces the outcome
// rules of every graph it builds.
func NewGraphLoader(classifier engine.OutcomeClassifier) *GraphLoader {
	return &GraphLoader{
		cue:        NewCUEParser(),
		validator:  validator.New(),
		classifier: classifier,
	}
}

// LoadDefinition reads and validates the graph definition at path.
// Structural problems are returned as an *InvalidGraphError.
func (gl *GraphLoader) LoadDefinition(ctx context.Context, path string) (*engine.GraphDefinition, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	if format == FormatCUE {
		def, errs, err := gl.cue.Parse(ctx, path)
		if err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			return nil, &InvalidGraphError{Path: path, Errors: errs}
		}
		if errs := gl.checkStruct(def); len(errs) > 0 {
			return nil, &InvalidGraphError{Path: path, Errors: errs}
		}
		return def, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	def, err := gl.ParseDefinition(ctx, data, format)
	var invalid *InvalidGraphError
	if errors.As(err, &invalid) {
		invalid.Path = path
		for i := range invalid.Errors {
			if invalid.Errors[i].File == "" {
				invalid.Errors[i].File = path
			}
		}
	}
	return def, err
}

// ParseDefinition decodes JSON or YAML graph data and validates it.
func (gl *GraphLoader) ParseDefinition(ctx context.Context, data []byte, format string) (*engine.GraphDefinition, error) {
	var def engine.GraphDefinition
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, &InvalidGraphError{Errors: []ValidationError{{
				Message:  fmt.Sprintf("failed to parse graph JSON: %v", err),
				Severity: "error",
			}}}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, &InvalidGraphError{Errors: []ValidationError{{
				Message:  fmt.Sprintf("failed to parse graph YAML: %v", err),
				Severity: "error",
			}}}
		}
	case FormatCUE:
		parsed, errs := gl.cue.ParseInline(ctx, string(data))
		if len(errs) > 0 {
			return nil, &InvalidGraphError{Errors: errs}
		}
		def = *parsed
	default:
		return nil, fmt.Errorf("unsupported graph format %q", format)
	}

	if errs := gl.Validate(ctx, &def); len(errs) > 0 {
		return nil, &InvalidGraphError{Errors: errs}
	}
	return &def, nil
}

// Validate checks a definition against its struct tags and the #DayGraph
// schema.
func (gl *GraphLoader) Validate(ctx context.Context, def *engine.GraphDefinition) []ValidationError {
	errs := gl.checkStruct(def)
	if err := gl.cue.GetSchemaRegistry().ValidateGraph(ctx, def); err != nil {
		errs = append(errs, ValidationError{Message: err.Error(), Severity: "error"})
	}
	return errs
}

func (gl *GraphLoader) checkStruct(def *engine.GraphDefinition) []ValidationError {
	err := gl.validator.Struct(def)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Message: err.Error(), Severity: "error"}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Path:     strings.TrimPrefix(fe.Namespace(), "GraphDefinition."),
			Message:  fmt.Sprintf("failed %s constraint", fe.Tag()),
			Severity: "error",
		})
	}
	return out
}

// Build converts a definition into a DayGraph, installing the loader's
// classifier when one is set. A Starlark classifier falls back to the
// graph's own outcome rules.
func (gl *GraphLoader) Build(def *engine.GraphDefinition) (*engine.DayGraph, error) {
	g, err := engine.BuildGraph(def)
	if err != nil {
		return nil, err
	}
	switch c := gl.classifier.(type) {
	case nil:
	case *StarlarkClassifier:
		g.SetClassifier(c.WithFallback(g.Classifier()))
	default:
		g.SetClassifier(c)
	}
	return g, nil
}

// Load reads, validates and builds the graph at path.
func (gl *GraphLoader) Load(ctx context.Context, path string) (*engine.DayGraph, error) {
	def, err := gl.LoadDefinition(ctx, path)
	if err != nil {
		return nil, err
	}
	return gl.Build(def)
}
