package commands

import (
	"errors"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/generator"
	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/spf13/cobra"
)

// simulationReport is the JSON form of simulate's output.
type simulationReport struct {
	Seed       uint64                   `json:"seed,omitempty"`
	Simulation *engine.SimulationResult `json:"simulation"`
	Loop       *loop.Loop               `json:"loop,omitempty"`
}

func newSimulateCommand() *cobra.Command {
	var (
		decisions     []string
		knowledge     []string
		facts         []string
		probabilistic bool
		save          bool
		epoch         string
		parent        string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Walk a decision sequence through the day graph",
		Long: `Walk an explicit sequence of node ids through the day graph and report
where it ends: the outcome, the knowledge gained, or the step that failed.

With --probabilistic each transition rolls against its probability using
the --seed generator. With --save a legal walk is recorded as a loop.`,
		Example: `  # Walk the sample graph to success
  loopctl simulate -g day.yaml --decisions start,choice_a,revelation,success

  # Start already knowing a secret and roll probabilities
  loopctl simulate -g day.yaml --knowledge SECRET_X --probabilistic --seed 7 \
    --decisions start,choice_a,death`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(decisions) == 0 {
				return errors.New("--decisions is required")
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			g, _, err := s.loadGraph(nil)
			if err != nil {
				return err
			}
			ep, err := parseEpoch(epoch)
			if err != nil {
				return err
			}

			in := engine.SimulationInput{
				Decisions:     decisions,
				Knowledge:     engine.NewSet(knowledge...),
				Facts:         engine.NewSet(facts...),
				Probabilistic: probabilistic,
			}
			report := &simulationReport{}
			if probabilistic {
				in.Rand = s.rand()
				report.Seed = s.seed
			}
			report.Simulation = g.Simulate(in)
			s.tel.Metrics.RecordSimulation(simulationStatus(report.Simulation))

			if save && report.Simulation.Success {
				store, err := s.openStore()
				if err != nil {
					return err
				}
				defer s.closeStore(store)

				gen := generator.New(g, store, s.logger)
				l, _, err := gen.Record(s.ctx, decisions, generator.LoopSpec{
					ParentID:  parent,
					Epoch:     ep,
					Knowledge: in.Knowledge,
					Save:      true,
				})
				if err != nil {
					return err
				}
				report.Loop = l
			}

			if jsonOutput {
				return s.printJSON(report)
			}
			s.printSimulation(report.Simulation)
			if report.Loop != nil {
				s.printf("\n")
				s.printLoop(report.Loop)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&decisions, "decisions", nil, "ordered node ids to visit")
	cmd.Flags().StringSliceVar(&knowledge, "knowledge", nil, "knowledge held at the start")
	cmd.Flags().StringSliceVar(&facts, "facts", nil, "world facts true at the start")
	cmd.Flags().BoolVar(&probabilistic, "probabilistic", false, "roll transition probabilities")
	cmd.Flags().BoolVar(&save, "save", false, "record a successful walk as a loop")
	cmd.Flags().StringVar(&epoch, "epoch", "", "epoch of the saved loop")
	cmd.Flags().StringVar(&parent, "parent", "", "parent loop id of the saved loop")

	return cmd
}

func simulationStatus(r *engine.SimulationResult) string {
	switch {
	case !r.Success:
		return "failed"
	case r.DeathNode != "":
		return "death"
	default:
		return "success"
	}
}
