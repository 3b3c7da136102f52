package commands

import (
	"errors"
	"strings"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/operators"
	"github.com/spf13/cobra"
)

// ErrOperatorFailed is returned when an operator reports failure.
var ErrOperatorFailed = errors.New("operator failed")

// runReport is the JSON form of run's output.
type runReport struct {
	Operator operators.Kind    `json:"operator"`
	Seed     uint64            `json:"seed"`
	Result   *operators.Result `json:"result"`
}

// operatorFlags holds every operator parameter; each subcommand registers
// the ones its operator reads.
type operatorFlags struct {
	target      string
	sequence    []string
	reference   string
	changes     int
	minDistance int
	maxAttempts int
	epoch       string
	knowledge   []string
	parent      string
	save        bool
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a loop operator",
		Long: `Run one of the loop operators against the day graph.

Operators turn an intent into a concrete decision trace:
  - cause:           reach a target node
  - avoid:           end the day without passing a node
  - trigger:         visit a sequence of nodes in order
  - relive:          replay a stored loop
  - slightly-change: alter a few decisions of a stored loop
  - greatly-change:  find a loop far from a stored one

The created loop is saved to the store unless --save=false.`,
	}

	for _, kind := range operators.Kinds() {
		cmd.AddCommand(newOperatorCommand(kind))
	}

	return cmd
}

func newOperatorCommand(kind operators.Kind) *cobra.Command {
	var f operatorFlags
	use := strings.ReplaceAll(string(kind), "_", "-")

	cmd := &cobra.Command{
		Use:   use,
		Short: operatorShort[kind],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			g, _, err := s.loadGraph(nil)
			if err != nil {
				return err
			}
			ep, err := parseEpoch(f.epoch)
			if err != nil {
				return err
			}

			store, err := s.openStore()
			if err != nil {
				return err
			}
			defer s.closeStore(store)

			op, err := operators.New(kind, g, operators.Options{
				Store:  store,
				Rand:   s.rand(),
				Logger: s.logger,
			})
			if err != nil {
				return err
			}
			op = operators.Instrument(op)

			res, err := op.Execute(s.ctx, operators.Params{
				Epoch:            ep,
				InitialKnowledge: engine.NewSet(f.knowledge...),
				ParentID:         f.parent,
				Save:             f.save,
				Target:           f.target,
				Sequence:         f.sequence,
				ReferenceID:      f.reference,
				Changes:          f.changes,
				MinDistance:      f.minDistance,
				MaxAttempts:      f.maxAttempts,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := s.printJSON(&runReport{Operator: kind, Seed: s.seed, Result: res}); err != nil {
					return err
				}
			} else {
				s.printResult(use, res)
			}

			if !res.Success {
				return ErrOperatorFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	switch kind {
	case operators.KindCause, operators.KindAvoid:
		flags.StringVar(&f.target, "target", "", "node to reach or avoid")
		_ = cmd.MarkFlagRequired("target")
		flags.IntVar(&f.maxAttempts, "max-attempts", operators.DefaultMaxAttempts, "maximum search attempts")
	case operators.KindTrigger:
		flags.StringSliceVar(&f.sequence, "sequence", nil, "checkpoints to visit in order")
		_ = cmd.MarkFlagRequired("sequence")
	case operators.KindRelive:
		flags.StringVar(&f.reference, "ref", "", "stored loop to replay")
		_ = cmd.MarkFlagRequired("ref")
	case operators.KindSlightlyChange:
		flags.StringVar(&f.reference, "ref", "", "stored loop to alter")
		_ = cmd.MarkFlagRequired("ref")
		flags.IntVar(&f.changes, "changes", operators.DefaultChanges, "number of decisions to change")
		flags.IntVar(&f.maxAttempts, "max-attempts", operators.DefaultMaxAttempts, "maximum search attempts")
	case operators.KindGreatlyChange:
		flags.StringVar(&f.reference, "ref", "", "stored loop to move away from")
		_ = cmd.MarkFlagRequired("ref")
		flags.IntVar(&f.minDistance, "min-distance", operators.DefaultMinDistance, "minimum node-set distance from the reference")
		flags.IntVar(&f.maxAttempts, "max-attempts", operators.DefaultGreatlyChangeAttempts, "maximum search attempts")
	}
	flags.StringVar(&f.epoch, "epoch", "", "epoch of the created loop")
	flags.StringSliceVar(&f.knowledge, "knowledge", nil, "knowledge held at the start")
	flags.StringVar(&f.parent, "parent", "", "parent loop id of the created loop")
	flags.BoolVar(&f.save, "save", true, "save the created loop")

	return cmd
}

var operatorShort = map[operators.Kind]string{
	operators.KindCause:          "Find a loop that reaches a target node",
	operators.KindAvoid:          "Find a loop that never passes a node",
	operators.KindTrigger:        "Find a loop that visits nodes in order",
	operators.KindRelive:         "Replay a stored loop",
	operators.KindSlightlyChange: "Alter a few decisions of a stored loop",
	operators.KindGreatlyChange:  "Find a loop far from a stored one",
}

func (s *session) printResult(name string, res *operators.Result) {
	status := "✓"
	switch {
	case !res.Success:
		status = "✗"
	case res.PartialSuccess:
		status = "~"
	}
	s.printf("%s %s: %s (attempts: %d)\n", status, name, res.Message, res.Attempts)
	if len(res.Decisions) > 0 {
		s.printf("  decisions: %s\n", strings.Join(res.Decisions, " -> "))
	}
	if res.Simulation != nil && res.Simulation.Outcome.EndingType != "" {
		s.printf("  ending:    %s\n", res.Simulation.Outcome.EndingType)
	}
	if res.Loop != nil {
		s.printf("\n")
		s.printLoop(res.Loop)
	}
}
