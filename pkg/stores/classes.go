package stores

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
)

// recordStore is the subset of Store the shared helpers work against.
type recordStore interface {
	GetLoop(ctx context.Context, id string) (*loop.Loop, error)
	UpdateLoop(ctx context.Context, l *loop.Loop) error
	GetClass(ctx context.Context, id string) (*loop.Class, error)
	CreateClass(ctx context.Context, c *loop.Class) error
	FindClass(ctx context.Context, outcomeHash, knowledgeID string) (*loop.Class, error)
	UpdateClass(ctx context.Context, c *loop.Class) error
}

// assignClass files l under the class sharing its equivalence key. Callers
// serialize calls per store so two loops with a new key share one class.
func assignClass(ctx context.Context, s recordStore, l *loop.Loop) (*loop.Class, error) {
	if l.ClassID != "" {
		c, err := s.GetClass(ctx, l.ClassID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, loop.ErrNotFound) {
			return nil, err
		}
	}

	outcome, knowledge := l.EquivalenceKey()
	c, err := s.FindClass(ctx, outcome, knowledge)
	switch {
	case err == nil:
		c.AddLoop(l.ID)
		if err := s.UpdateClass(ctx, c); err != nil {
			return nil, fmt.Errorf("failed to add loop %s to class %s: %w", l.ID, c.ID, err)
		}
	case errors.Is(err, loop.ErrNotFound):
		c = loop.NewClass(l)
		if err := s.CreateClass(ctx, c); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	l.ClassID = c.ID
	if err := s.UpdateLoop(ctx, l); err != nil && !errors.Is(err, loop.ErrNotFound) {
		return nil, fmt.Errorf("failed to record class of loop %s: %w", l.ID, err)
	}
	return c, nil
}

// lineage follows parent links from id and returns the chain oldest first.
// A missing ancestor ends the chain; a cycle or an over-deep chain stops it.
func lineage(ctx context.Context, f loop.Finder, id string) ([]*loop.Loop, error) {
	var chain []*loop.Loop
	visited := make(map[string]struct{})

	for current := id; current != ""; {
		if _, seen := visited[current]; seen || len(chain) >= loop.DefaultMaxChainDepth {
			break
		}
		visited[current] = struct{}{}

		l, err := f.GetLoop(ctx, current)
		if errors.Is(err, loop.ErrNotFound) {
			if current == id {
				return nil, err
			}
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, l)
		current = l.ParentID
	}

	slices.Reverse(chain)
	return chain, nil
}

func compressionRatio(loops, classes int) float64 {
	if classes == 0 {
		return 0
	}
	return float64(loops) / float64(classes)
}

func announceLoop(ctx context.Context, l *loop.Loop) {
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordLoopCreated(string(l.Epoch))
		_ = tel.Events.PublishLoopCreated(l.ID, l.ParentID, l.OutcomeHash)
	}
}

func announceClass(ctx context.Context, c *loop.Class) {
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordClassCreated()
		_ = tel.Events.PublishClassCreated(c.ID, c.RepresentativeID)
	}
}
