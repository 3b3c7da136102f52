package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
)

// IntegrityReport lists the problems found by CheckIntegrity. Errors are
// violated invariants; warnings are advisory.
type IntegrityReport struct {
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	LoopsChecked   int      `json:"loops_checked"`
	ClassesChecked int      `json:"classes_checked"`
}

// OK reports whether no errors were found.
func (r *IntegrityReport) OK() bool {
	return len(r.Errors) == 0
}

// CheckIntegrity validates every stored loop, sub-loop and class: field
// constraints, parent chains, sample and class references, and epoch
// ordering along each lineage.
func CheckIntegrity(ctx context.Context, s Store) (*IntegrityReport, error) {
	report := &IntegrityReport{Errors: []string{}, Warnings: []string{}}
	tel := telemetry.FromTelemetryContext(ctx)

	fail := func(subject, issue string) {
		report.Errors = append(report.Errors, issue)
		if tel != nil {
			_ = tel.Events.PublishIntegrityIssue(subject, issue)
		}
	}

	classes, err := s.ListClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	classIDs := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		classIDs[c.ID] = struct{}{}
	}

	for offset := 0; ; offset += DefaultListLimit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := s.ListLoops(ctx, LoopFilter{Limit: DefaultListLimit, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("failed to list loops: %w", err)
		}

		for _, l := range page {
			report.LoopsChecked++

			problems, err := loop.ValidateLoop(ctx, l, s)
			if err != nil {
				return nil, err
			}
			chain, err := loop.ValidateParentChain(ctx, l.ID, s, loop.DefaultMaxChainDepth)
			if err != nil {
				return nil, err
			}
			for _, p := range append(problems, chain...) {
				fail(l.ID, fmt.Sprintf("Loop %s: %s", l.ID, p))
			}

			if l.ClassID != "" {
				if _, ok := classIDs[l.ClassID]; !ok {
					fail(l.ID, fmt.Sprintf("Loop %s references missing class %s", l.ID, l.ClassID))
				}
			}

			warnings, err := loop.ValidateEpochOrdering(ctx, l.ID, s)
			if err != nil && !errors.Is(err, loop.ErrNotFound) {
				return nil, err
			}
			report.Warnings = append(report.Warnings, warnings...)

			subs, err := s.ListSubLoops(ctx, l.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to list sub-loops of %s: %w", l.ID, err)
			}
			for _, sub := range subs {
				problems, err := loop.ValidateSubLoop(ctx, sub, s)
				if err != nil {
					return nil, err
				}
				for _, p := range problems {
					fail(l.ID, fmt.Sprintf("SubLoop %s: %s", sub.ID, p))
				}
			}
		}

		if len(page) < DefaultListLimit {
			break
		}
	}

	for _, c := range classes {
		report.ClassesChecked++
		problems, err := loop.ValidateClass(ctx, c, s)
		if err != nil {
			return nil, err
		}
		for _, p := range problems {
			fail(c.RepresentativeID, fmt.Sprintf("Class %s: %s", c.ID, p))
		}
	}

	return report, nil
}
