package commands

import (
	"errors"

	"github.com/CrazyDubya/Loop/pkg/config"
	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/policy"
	"github.com/spf13/cobra"
)

// ErrValidationFailed is returned when a graph has errors or blocking lint
// findings.
var ErrValidationFailed = errors.New("validation failed")

// validationReport is the JSON form of validate's output.
type validationReport struct {
	Graph       string                   `json:"graph"`
	Valid       bool                     `json:"valid"`
	Nodes       int                      `json:"nodes"`
	Transitions int                      `json:"transitions"`
	Errors      []config.ValidationError `json:"errors,omitempty"`
	Diagnostics []string                 `json:"diagnostics,omitempty"`
	Lint        *policy.Result           `json:"lint,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var (
		failOn   string
		noLint   bool
		policies []string
	)

	cmd := &cobra.Command{
		Use:   "validate [graph]",
		Short: "Validate a day graph",
		Long: `Validate a day graph file against its schema, its structure and the lint
policies.

This command checks:
  - JSON, YAML or CUE syntax
  - Schema conformance (the #DayGraph CUE schema and field constraints)
  - Predicate and effect syntax
  - Structure: start node, reachability, transitions into the past
  - Lint policies (built-in and user rego files)`,
		Example: `  # Validate the configured graph
  loopctl validate

  # Validate a specific file, failing on warnings
  loopctl validate ./day.cue --fail-on warning

  # Add a directory of rego policies
  loopctl validate ./day.yaml --policy ./policies`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if cmd.Flags().Changed("fail-on") {
				s.cfg.Policies.FailOn = failOn
			}
			if noLint {
				s.cfg.Policies.Enabled = false
			}
			s.cfg.Policies.Paths = append(s.cfg.Policies.Paths, policies...)

			report, err := s.validate(args)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := s.printJSON(report); err != nil {
					return err
				}
			} else {
				s.printValidation(report)
			}

			if !report.Valid {
				return ErrValidationFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&failOn, "fail-on", "error", "lowest lint severity that fails validation (error, warning)")
	cmd.Flags().BoolVar(&noLint, "no-lint", false, "skip lint policies")
	cmd.Flags().StringSliceVar(&policies, "policy", nil, "additional rego policy file or directory")

	return cmd
}

// validate runs every check and reports the findings. The error return is
// reserved for problems that prevent validation from running.
func (s *session) validate(args []string) (*validationReport, error) {
	path, err := s.graphFile(args)
	if err != nil {
		return nil, err
	}
	report := &validationReport{Graph: path, Valid: true}

	loader, err := s.graphLoader()
	if err != nil {
		return nil, err
	}

	def, err := loader.LoadDefinition(s.ctx, path)
	var invalid *config.InvalidGraphError
	switch {
	case errors.As(err, &invalid):
		report.Valid = false
		report.Errors = invalid.Errors
		return report, nil
	case err != nil:
		return nil, err
	}

	g, err := loader.Build(def)
	if err != nil {
		report.Valid = false
		report.Errors = []config.ValidationError{{File: path, Message: err.Error(), Severity: "error"}}
	} else {
		report.Nodes = len(g.Nodes())
		report.Transitions = len(g.Transitions())
		report.Diagnostics = g.Validate()
		if len(report.Diagnostics) > 0 {
			report.Valid = false
		}
	}

	if s.cfg.Policies.Enabled {
		lint, err := s.lint(def, path)
		if err != nil {
			return nil, err
		}
		report.Lint = lint
		threshold, err := policy.ParseSeverity(s.cfg.Policies.FailOn)
		if err != nil {
			return nil, err
		}
		if lint.Fails(threshold) || len(lint.Errors) > 0 {
			report.Valid = false
		}
	}

	s.logger.Info().
		Str("graph", path).
		Bool("valid", report.Valid).
		Int("diagnostics", len(report.Diagnostics)).
		Msg("Graph validated")
	return report, nil
}

// newPolicyEngine returns an engine with the configured user policies.
func (s *session) newPolicyEngine() (*policy.Engine, error) {
	pe, err := policy.NewEngine(s.logger)
	if err != nil {
		return nil, err
	}
	if len(s.cfg.Policies.Paths) > 0 {
		if err := pe.LoadPolicies(s.ctx, s.cfg.Policies.Paths); err != nil {
			return nil, err
		}
	}
	return pe, nil
}

func (s *session) lint(def *engine.GraphDefinition, source string) (*policy.Result, error) {
	pe, err := s.newPolicyEngine()
	if err != nil {
		return nil, err
	}
	return pe.Lint(s.ctx, def, source)
}

func (s *session) printValidation(r *validationReport) {
	s.printf("Graph: %s\n", r.Graph)
	if r.Nodes > 0 {
		s.printf("  %d nodes, %d transitions\n", r.Nodes, r.Transitions)
	}
	for _, e := range r.Errors {
		s.printf("  ✗ %s\n", e.String())
	}
	for _, d := range r.Diagnostics {
		s.printf("  ✗ %s\n", d)
	}
	if r.Lint != nil {
		for _, v := range r.Lint.All() {
			s.printf("  %s %s\n", severityMark(v.Severity), v.String())
		}
		for _, e := range r.Lint.Errors {
			s.printf("  ! %s\n", e)
		}
	}
	if r.Valid {
		s.printf("\n✓ Graph is valid\n")
	} else {
		s.printf("\n✗ Graph is invalid\n")
	}
}

func severityMark(sev policy.Severity) string {
	if sev.Blocking() {
		return "✗"
	}
	return "~"
}
