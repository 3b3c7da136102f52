package commands

import (
	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/generator"
	"github.com/CrazyDubya/Loop/pkg/stores"
	"github.com/spf13/cobra"
)

// specFlags are the loop fields shared by every generate subcommand.
type specFlags struct {
	epoch     string
	knowledge []string
	parent    string
	save      bool
}

func (f *specFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.epoch, "epoch", "", "epoch of the generated loops")
	cmd.Flags().StringSliceVar(&f.knowledge, "knowledge", nil, "knowledge held at the start")
	cmd.Flags().StringVar(&f.parent, "parent", "", "parent loop id")
	cmd.Flags().BoolVar(&f.save, "save", true, "save the generated loops")
}

func (f *specFlags) spec() (generator.LoopSpec, error) {
	ep, err := parseEpoch(f.epoch)
	if err != nil {
		return generator.LoopSpec{}, err
	}
	return generator.LoopSpec{
		ParentID:  f.parent,
		Epoch:     ep,
		Knowledge: engine.NewSet(f.knowledge...),
		Save:      f.save,
	}, nil
}

// generation is what every generate subcommand runs against.
type generation struct {
	*session
	gen   *generator.Engine
	spec  generator.LoopSpec
	store stores.Store
}

// withGenerator loads the graph, opens the store when loops are saved and
// runs fn. The store is closed afterwards.
func withGenerator(cmd *cobra.Command, f *specFlags, fn func(g *generation) error) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	dg, _, err := s.loadGraph(nil)
	if err != nil {
		return err
	}
	spec, err := f.spec()
	if err != nil {
		return err
	}

	g := &generation{session: s, spec: spec}
	var store generator.Store
	if spec.Save {
		g.store, err = s.openStore()
		if err != nil {
			return err
		}
		defer s.closeStore(g.store)
		store = g.store
	}
	g.gen = generator.New(dg, store, s.logger)
	return fn(g)
}

func (g *generation) print(loops []*generator.Generated) error {
	if jsonOutput {
		return g.printJSON(map[string]interface{}{"seed": g.seed, "loops": loops})
	}
	for i, l := range loops {
		if i > 0 {
			g.printf("\n")
		}
		g.printLoop(l.Loop)
	}
	return nil
}

func newGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate loops",
		Long: `Generate loops by walking the day graph: random walks, the first path to a
goal, chains where each loop inherits its predecessor's knowledge, and
parallel batches of independent loops.

Random choices derive from --seed, so a run can be reproduced.`,
	}

	cmd.AddCommand(newGenerateRandomCommand())
	cmd.AddCommand(newGenerateGoalCommand())
	cmd.AddCommand(newGenerateChainCommand())
	cmd.AddCommand(newGenerateBatchCommand())

	return cmd
}

func newGenerateRandomCommand() *cobra.Command {
	var (
		f     specFlags
		steps int
	)

	cmd := &cobra.Command{
		Use:   "random",
		Short: "Generate one loop by a random walk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGenerator(cmd, &f, func(g *generation) error {
				if steps <= 0 {
					steps = g.cfg.Engine.WalkSteps
				}
				gen, err := g.gen.RandomLoop(g.ctx, g.spec, steps, g.rand())
				if err != nil {
					return err
				}
				return g.print([]*generator.Generated{gen})
			})
		},
	}

	f.register(cmd)
	cmd.Flags().IntVar(&steps, "steps", 0, "maximum walk length (default from config)")

	return cmd
}

func newGenerateGoalCommand() *cobra.Command {
	var (
		f      specFlags
		target string
	)

	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Generate the first loop that reaches a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGenerator(cmd, &f, func(g *generation) error {
				gen, err := g.gen.PathToGoal(g.ctx, target, g.spec)
				if err != nil {
					return err
				}
				return g.print([]*generator.Generated{gen})
			})
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&target, "target", "", "node to reach")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func newGenerateChainCommand() *cobra.Command {
	var (
		f     specFlags
		count int
	)

	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Generate a lineage of loops that carry knowledge forward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGenerator(cmd, &f, func(g *generation) error {
				loops, err := g.gen.Chain(g.ctx, count, g.spec, g.rand())
				if err != nil {
					if len(loops) > 0 {
						_ = g.print(loops)
					}
					return err
				}
				return g.print(loops)
			})
		},
	}

	f.register(cmd)
	cmd.Flags().IntVar(&count, "count", 5, "number of loops in the chain")

	return cmd
}

func newGenerateBatchCommand() *cobra.Command {
	var (
		f       specFlags
		count   int
		workers int
		steps   int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate independent random loops in parallel",
		Example: `  # 500 loops on 8 workers, reproducible
  loopctl generate batch -g day.yaml --count 500 --workers 8 --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGenerator(cmd, &f, func(g *generation) error {
				if workers <= 0 {
					workers = g.cfg.Engine.Workers
				}
				if steps <= 0 {
					steps = g.cfg.Engine.WalkSteps
				}

				res, err := g.gen.Batch(g.ctx, generator.BatchOptions{
					Count:    count,
					Workers:  workers,
					Seed:     g.seed,
					MaxSteps: steps,
					Spec:     g.spec,
				})
				if err != nil {
					return err
				}
				for i, itemErr := range res.Errors {
					if itemErr != nil {
						g.logger.Warn().Err(itemErr).Int("item", i).Str("batch_id", res.ID).Msg("Batch item failed")
					}
				}

				if jsonOutput {
					return g.printJSON(map[string]interface{}{"seed": g.seed, "batch": res})
				}
				g.printf("Batch %s: %d succeeded, %d failed\n", res.ID, res.Succeeded, res.Failed)
				if g.store != nil {
					stats, err := g.store.Stats(g.ctx)
					if err != nil {
						return err
					}
					g.printf("Store: %d loops in %d classes (compression %.2f)\n",
						stats.TotalLoops, stats.TotalClasses, stats.CompressionRatio)
				}
				return nil
			})
		},
	}

	f.register(cmd)
	cmd.Flags().IntVar(&count, "count", 100, "number of loops")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent workers (default from config)")
	cmd.Flags().IntVar(&steps, "steps", 0, "maximum walk length (default from config)")

	return cmd
}
