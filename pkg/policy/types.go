package policy

import (
	"fmt"
	"time"

	"github.com/CrazyDubya/Loop/pkg/engine"
)

// Severity represents the severity level of a lint violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for graph smells that still simulate correctly.
	SeverityWarning Severity = "warning"

	// SeverityError is for problems that make the graph misbehave.
	SeverityError Severity = "error"

	// SeverityCritical is for problems that make the graph unusable.
	SeverityCritical Severity = "critical"
)

// Rank orders severities from info (0) to critical (3). Unknown values rank
// as warnings.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 1
	}
}

// Blocking reports whether a violation of this severity fails validation.
func (s Severity) Blocking() bool {
	return s.Rank() >= SeverityError.Rank()
}

// ParseSeverity converts a severity name.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Policy is one lint rule set written in Rego. Its package must define a
// deny set whose members are strings or objects with message, subject and
// an optional severity.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks the policies shipped with loopctl.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source is the file the policy was read from.
	Source string `json:"source,omitempty"`

	// CreatedAt is when the policy was loaded.
	CreatedAt time.Time `json:"created_at"`
}

// Violation is a single lint finding.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Subject is the node id, transition (from->to) or "graph".
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

func (v Violation) String() string {
	if v.Subject == "" {
		return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Policy, v.Message)
	}
	return fmt.Sprintf("[%s] %s (%s): %s", v.Severity, v.Policy, v.Subject, v.Message)
}

// Result is the outcome of linting one graph.
type Result struct {
	// Allowed is false when any blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists error and critical findings.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists info and warning findings.
	Warnings []Violation `json:"warnings,omitempty"`

	// Errors lists policies that failed to evaluate.
	Errors []string `json:"errors,omitempty"`

	// EvaluatedAt is when the lint ran.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// All returns violations followed by warnings.
func (r *Result) All() []Violation {
	out := make([]Violation, 0, len(r.Violations)+len(r.Warnings))
	out = append(out, r.Violations...)
	return append(out, r.Warnings...)
}

// Fails reports whether any finding is at or above threshold.
func (r *Result) Fails(threshold Severity) bool {
	for _, v := range r.All() {
		if v.Severity.Rank() >= threshold.Rank() {
			return true
		}
	}
	return false
}

// Summary aggregates a result by severity.
func (r *Result) Summary() *Summary {
	s := &Summary{
		TotalPolicies:        len(r.EvaluatedPolicies),
		TotalViolations:      len(r.Violations),
		TotalWarnings:        len(r.Warnings),
		ViolationsBySeverity: map[Severity]int{},
		EvaluationDuration:   r.Duration,
	}
	for _, v := range r.All() {
		s.ViolationsBySeverity[v.Severity]++
	}
	return s
}

// Summary provides aggregate statistics for one lint run.
type Summary struct {
	TotalPolicies        int              `json:"total_policies"`
	TotalViolations      int              `json:"total_violations"`
	TotalWarnings        int              `json:"total_warnings"`
	ViolationsBySeverity map[Severity]int `json:"violations_by_severity"`
	EvaluationDuration   time.Duration    `json:"evaluation_duration"`
}

// Input is the document policies see as input.
type Input struct {
	// Graph is the graph definition under lint.
	Graph *engine.GraphDefinition `json:"graph"`

	// Context provides evaluation context.
	Context *Context `json:"context"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// Source is the graph file path, if any.
	Source string `json:"source,omitempty"`

	// Operation is the command that triggered the lint (validate, watch).
	Operation string `json:"operation,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}

// Bundle is a JSON file carrying several policies.
type Bundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`
}
