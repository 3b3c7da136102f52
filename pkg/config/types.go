package config

import (
	"strconv"
	"time"

	"github.com/CrazyDubya/Loop/pkg/telemetry"
)

// Config is the loopctl application configuration.
type Config struct {
	// Graph is the default day graph file (.json, .yaml, .yml or .cue).
	Graph string `yaml:"graph,omitempty"`

	// Storage configures loop persistence.
	Storage StorageConfig `yaml:"storage"`

	// Engine tunes searches and generation.
	Engine EngineConfig `yaml:"engine"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry *telemetry.Config `yaml:"telemetry"`

	// Policies configures graph lint policies.
	Policies PolicyConfig `yaml:"policies"`

	// OutcomeScript is a Starlark file defining classify(state). When set it
	// replaces the graph's outcome rules.
	OutcomeScript string `yaml:"outcome_script,omitempty"`
}

// StorageConfig selects a store backend.
type StorageConfig struct {
	// Backend is the store implementation (sqlite, badger).
	Backend string `yaml:"backend" validate:"required,oneof=sqlite badger"`

	// Path is the SQLite file or badger directory.
	Path string `yaml:"path" validate:"required_without=InMemory"`

	// InMemory keeps the store in memory.
	InMemory bool `yaml:"in_memory"`
}

// EngineConfig tunes searches and generation.
type EngineConfig struct {
	// Seed makes every random choice reproducible. Zero picks a random seed.
	Seed uint64 `yaml:"seed"`

	// MaxPaths bounds path enumeration.
	MaxPaths int `yaml:"max_paths" validate:"gte=1"`

	// MaxDepth bounds the length of enumerated paths.
	MaxDepth int `yaml:"max_depth" validate:"gte=1"`

	// WalkSteps bounds random walks.
	WalkSteps int `yaml:"walk_steps" validate:"gte=1"`

	// Workers is the batch generation concurrency.
	Workers int `yaml:"workers" validate:"gte=1,lte=256"`
}

// PolicyConfig configures graph lint policies.
type PolicyConfig struct {
	// Enabled turns graph linting on.
	Enabled bool `yaml:"enabled"`

	// Paths lists rego files or directories loaded next to the built-ins.
	Paths []string `yaml:"paths,omitempty"`

	// FailOn is the lowest severity that fails validation (error, warning).
	FailOn string `yaml:"fail_on" validate:"oneof=error warning"`
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the field path of the error (e.g., "nodes[2].type").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// String formats the error as file:line:column: path: message.
func (e ValidationError) String() string {
	s := e.Message
	if e.Path != "" {
		s = e.Path + ": " + s
	}
	if e.File != "" {
		loc := e.File
		if e.Line > 0 {
			loc += ":" + strconv.Itoa(e.Line) + ":" + strconv.Itoa(e.Column)
		}
		s = loc + ": " + s
	}
	return s
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output is the output data from Starlark.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}
