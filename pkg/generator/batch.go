package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the batch pool size when BatchOptions.Workers is unset.
const DefaultWorkers = 10

// BatchOptions configures Batch.
type BatchOptions struct {
	// Count is the number of loops to generate.
	Count int

	// Workers bounds concurrent generations.
	Workers int

	// Seed derives each item's generator: item i uses engine.NewRand(Seed+i),
	// so results do not depend on scheduling.
	Seed uint64

	// MaxSteps bounds every random walk.
	MaxSteps int

	// Spec is applied to every loop. Batch loops are independent, so
	// Spec.ParentID is shared rather than chained.
	Spec LoopSpec
}

// BatchResult collects a batch's loops in item order. Failed items leave a
// nil entry in Loops and their error in Errors.
type BatchResult struct {
	ID        string       `json:"id"`
	Loops     []*Generated `json:"loops"`
	Errors    []error      `json:"-"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Batch generates independent random loops on a bounded worker pool. Item
// failures are collected; the returned error is non-nil only when ctx ends
// before the batch completes.
func (e *Engine) Batch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	if opts.Count < 0 {
		return nil, engine.NewValidationError("count", fmt.Sprintf("batch count must not be negative, got %d", opts.Count))
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	res := &BatchResult{
		ID:     "batch-" + uuid.NewString()[:8],
		Loops:  make([]*Generated, opts.Count),
		Errors: make([]error, opts.Count),
	}

	ctx = telemetry.WithBatchContext(ctx, res.ID, opts.Count)
	e.log.Debug().Str("batch_id", res.ID).Int("count", opts.Count).Int("workers", workers).Msg("batch started")

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range opts.Count {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				res.Errors[i] = err
				return nil
			}
			rng := engine.NewRand(opts.Seed + uint64(i))
			gen, err := e.RandomLoop(gCtx, opts.Spec, opts.MaxSteps, rng)
			if err != nil {
				res.Errors[i] = err
				return nil
			}
			res.Loops[i] = gen
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range res.Errors {
		if err == nil {
			res.Succeeded++
			continue
		}
		res.Failed++
		errs = append(errs, err)
	}

	runErr := ctx.Err()
	telemetry.EndBatchContext(ctx, res.ID, res.Succeeded, res.Failed, errors.Join(errs...))
	e.log.Debug().Str("batch_id", res.ID).Int("succeeded", res.Succeeded).Int("failed", res.Failed).Msg("batch completed")

	if runErr != nil {
		return res, runErr
	}
	return res, nil
}
