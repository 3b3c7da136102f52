package loop

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultMaxChainDepth bounds parent chain walks.
const DefaultMaxChainDepth = 10000

// Finder looks up loops by id. Implementations return an error wrapping
// ErrNotFound when the loop does not exist.
type Finder interface {
	GetLoop(ctx context.Context, id string) (*Loop, error)
}

// LineageFinder returns the ancestry of a loop, oldest ancestor first and the
// loop itself last.
type LineageFinder interface {
	Lineage(ctx context.Context, id string) ([]*Loop, error)
}

// exists reports whether id resolves through f. Lookup failures other than
// not-found are returned to the caller.
func exists(ctx context.Context, f Finder, id string) (bool, error) {
	_, err := f.GetLoop(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// ValidateLoop checks a loop's fields. When f is non-nil the parent
// reference is resolved as well.
func ValidateLoop(ctx context.Context, l *Loop, f Finder) ([]string, error) {
	var problems []string

	if l.ID == "" {
		problems = append(problems, "Loop must have an ID")
	}
	if !strings.HasPrefix(l.ID, "loop-") {
		problems = append(problems, "Loop ID must start with 'loop-'")
	}
	if !l.Epoch.Valid() {
		problems = append(problems, fmt.Sprintf("Invalid epoch type: %s", l.Epoch))
	}
	if l.ParentID != "" && f != nil {
		ok, err := exists(ctx, f, l.ParentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			problems = append(problems, fmt.Sprintf("Parent loop not found: %s", l.ParentID))
		}
	}
	if l.ParentID != "" && l.ParentID == l.ID {
		problems = append(problems, "Loop cannot be its own parent")
	}

	return problems, nil
}

// ValidateSubLoop checks a sub-loop's fields and, when f is non-nil, its parent.
func ValidateSubLoop(ctx context.Context, s *SubLoop, f Finder) ([]string, error) {
	var problems []string

	if s.ID == "" {
		problems = append(problems, "SubLoop must have an ID")
	}
	if s.ParentLoopID == "" {
		problems = append(problems, "SubLoop must have a parent_loop_id")
	}
	if s.StartTime < 0 {
		problems = append(problems, "start_time must be non-negative")
	}
	if s.EndTime <= s.StartTime {
		problems = append(problems, "end_time must be greater than start_time")
	}
	if s.AttemptsCount < 1 {
		problems = append(problems, "attempts_count must be at least 1")
	}
	if f != nil && s.ParentLoopID != "" {
		ok, err := exists(ctx, f, s.ParentLoopID)
		if err != nil {
			return nil, err
		}
		if !ok {
			problems = append(problems, fmt.Sprintf("Parent loop not found: %s", s.ParentLoopID))
		}
	}

	return problems, nil
}

// ValidateClass checks an equivalence class and, when f is non-nil, that
// every sample loop exists.
func ValidateClass(ctx context.Context, c *Class, f Finder) ([]string, error) {
	var problems []string

	if c.ID == "" {
		problems = append(problems, "LoopClass must have an ID")
	}
	if c.OutcomeHash == "" {
		problems = append(problems, "LoopClass must have an outcome_hash")
	}
	if c.Count < 1 {
		problems = append(problems, "count must be at least 1")
	}
	if len(c.SampleIDs) > c.Count {
		problems = append(problems, "sample_ids count exceeds total count")
	}
	if c.RepresentativeID != "" && len(c.SampleIDs) > 0 && !slices.Contains(c.SampleIDs, c.RepresentativeID) {
		problems = append(problems, "representative_id should be in sample_ids")
	}
	if f != nil {
		for _, id := range c.SampleIDs {
			ok, err := exists(ctx, f, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				problems = append(problems, fmt.Sprintf("Sample loop not found: %s", id))
			}
		}
	}

	return problems, nil
}

// ValidateParentChain walks from id towards the root, reporting cycles,
// missing links, and chains deeper than maxDepth.
func ValidateParentChain(ctx context.Context, id string, f Finder, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxChainDepth
	}

	var problems []string
	visited := make(map[string]struct{})
	depth := 0

	for current := id; current != ""; {
		if _, seen := visited[current]; seen {
			problems = append(problems, fmt.Sprintf("Circular reference detected at loop: %s", current))
			break
		}
		visited[current] = struct{}{}
		depth++

		if depth > maxDepth {
			problems = append(problems, fmt.Sprintf("Parent chain exceeds maximum depth of %d", maxDepth))
			break
		}

		l, err := f.GetLoop(ctx, current)
		if errors.Is(err, ErrNotFound) {
			problems = append(problems, fmt.Sprintf("Loop not found in chain: %s", current))
			break
		}
		if err != nil {
			return nil, err
		}
		current = l.ParentID
	}

	return problems, nil
}

// ValidateEpochOrdering returns advisory warnings for every epoch regression
// along the lineage of id.
func ValidateEpochOrdering(ctx context.Context, id string, f LineageFinder) ([]string, error) {
	lineage, err := f.Lineage(ctx, id)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for i := 1; i < len(lineage); i++ {
		prev, curr := lineage[i-1], lineage[i]
		if !IsForwardProgression(prev.Epoch, curr.Epoch) {
			warnings = append(warnings, fmt.Sprintf("Epoch regression: %s -> %s at loop %s", prev.Epoch, curr.Epoch, curr.ID))
		}
	}
	return warnings, nil
}
