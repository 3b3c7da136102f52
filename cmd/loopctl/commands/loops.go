package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/CrazyDubya/Loop/pkg/stores"
	"github.com/spf13/cobra"
)

func newLoopsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loops",
		Short: "Inspect stored loops",
		Long: `Inspect the loop store: single loops, filtered listings, ancestry,
equivalence classes and sub-loops.`,
	}

	cmd.AddCommand(newLoopsShowCommand())
	cmd.AddCommand(newLoopsListCommand())
	cmd.AddCommand(newLoopsLineageCommand())
	cmd.AddCommand(newLoopsClassesCommand())
	cmd.AddCommand(newLoopsStatsCommand())
	cmd.AddCommand(newSubLoopCommand())

	return cmd
}

// withStore opens the configured store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(s *session, store stores.Store) error) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	store, err := s.openStore()
	if err != nil {
		return err
	}
	defer s.closeStore(store)

	return fn(s, store)
}

func newLoopsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <loop-id>",
		Short: "Show a stored loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *session, store stores.Store) error {
				l, err := store.GetLoop(s.ctx, args[0])
				if err != nil {
					return err
				}
				subs, err := store.ListSubLoops(s.ctx, l.ID)
				if err != nil {
					return err
				}

				if jsonOutput {
					return s.printJSON(map[string]interface{}{"loop": l, "subloops": subs})
				}
				s.printLoop(l)
				if len(subs) > 0 {
					s.printf("  sub-loops:   %d\n", len(subs))
				}
				return nil
			})
		},
	}

	return cmd
}

func newLoopsListCommand() *cobra.Command {
	var (
		epoch  string
		filter stores.LoopFilter
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored loops",
		Example: `  # Obsession-epoch loops in one equivalence class
  loopctl loops list --epoch obsession --class class-1a2b3c4d5e6f`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if epoch != "" {
				ep, err := loop.ParseEpoch(epoch)
				if err != nil {
					return err
				}
				filter.Epoch = ep
			}

			return withStore(cmd, func(s *session, store stores.Store) error {
				loops, err := store.ListLoops(s.ctx, filter)
				if err != nil {
					return err
				}
				total, err := store.CountLoops(s.ctx, filter)
				if err != nil {
					return err
				}

				if jsonOutput {
					return s.printJSON(map[string]interface{}{"total": total, "loops": loops})
				}
				s.printLoopTable(loops)
				s.printf("\n%d of %d loops\n", len(loops), total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&epoch, "epoch", "", "only loops of this epoch")
	cmd.Flags().StringVar(&filter.OutcomeHash, "outcome", "", "only loops with this outcome hash")
	cmd.Flags().StringVar(&filter.KnowledgeID, "knowledge-id", "", "only loops with this knowledge id")
	cmd.Flags().StringVar(&filter.ClassID, "class", "", "only loops in this class")
	cmd.Flags().StringVar(&filter.ParentID, "parent", "", "only children of this loop")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum number of loops")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "number of loops to skip")

	return cmd
}

func newLoopsLineageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lineage <loop-id>",
		Short: "Show a loop's ancestry, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *session, store stores.Store) error {
				lineage, err := store.Lineage(s.ctx, args[0])
				if err != nil {
					return err
				}
				warnings, err := loop.ValidateEpochOrdering(s.ctx, args[0], store)
				if err != nil {
					return err
				}

				if jsonOutput {
					return s.printJSON(map[string]interface{}{"lineage": lineage, "warnings": warnings})
				}
				s.printLoopTable(lineage)
				for _, w := range warnings {
					s.printf("~ %s\n", w)
				}
				return nil
			})
		},
	}

	return cmd
}

func newLoopsClassesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List equivalence classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *session, store stores.Store) error {
				classes, err := store.ListClasses(s.ctx)
				if err != nil {
					return err
				}

				if jsonOutput {
					return s.printJSON(classes)
				}
				w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CLASS\tCOUNT\tREPRESENTATIVE\tOUTCOME\tKNOWLEDGE")
				for _, c := range classes {
					fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", c.ID, c.Count, c.RepresentativeID, c.OutcomeHash, c.KnowledgeID)
				}
				return w.Flush()
			})
		},
	}

	return cmd
}

func newLoopsStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the loop store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *session, store stores.Store) error {
				stats, err := store.Stats(s.ctx)
				if err != nil {
					return err
				}

				if jsonOutput {
					return s.printJSON(stats)
				}
				s.printf("Loops:       %d\n", stats.TotalLoops)
				s.printf("Classes:     %d\n", stats.TotalClasses)
				s.printf("Sub-loops:   %d\n", stats.TotalSubLoops)
				s.printf("Compression: %.2f\n", stats.CompressionRatio)
				for _, ep := range loop.Epochs() {
					if n := stats.LoopsByEpoch[string(ep)]; n > 0 {
						s.printf("  %-10s %d\n", ep, n)
					}
				}
				return nil
			})
		},
	}

	return cmd
}

func newSubLoopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subloop",
		Short: "Record and list sub-loops",
		Long: `A sub-loop is a nested reset inside one loop: the protagonist rewinds to an
earlier time slot and retries a window of the day.`,
	}

	cmd.AddCommand(newSubLoopCreateCommand())
	cmd.AddCommand(newSubLoopListCommand())

	return cmd
}

func newSubLoopCreateCommand() *cobra.Command {
	var (
		start     int
		end       int
		attempts  int
		best      string
		knowledge []string
		emotion   string
	)

	cmd := &cobra.Command{
		Use:   "create <loop-id>",
		Short: "Record a sub-loop inside a stored loop",
		Example: `  # Fifty retries of slots 3 to 5
  loopctl loops subloop create loop-1a2b3c4d5e6f --start 3 --end 5 --attempts 50 --emotion numb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := loop.NewSubLoop(args[0], start, end)
			if err != nil {
				return err
			}
			sub.AttemptsCount = attempts
			sub.BestOutcomeHash = best
			sub.KnowledgeGained = append(sub.KnowledgeGained, knowledge...)
			if emotion != "" {
				sub.EmotionalEffect = emotion
			}

			return withStore(cmd, func(s *session, store stores.Store) error {
				problems, err := loop.ValidateSubLoop(s.ctx, sub, store)
				if err != nil {
					return err
				}
				if len(problems) > 0 {
					return fmt.Errorf("invalid sub-loop: %s", strings.Join(problems, "; "))
				}
				if err := store.CreateSubLoop(s.ctx, sub); err != nil {
					return err
				}

				if jsonOutput {
					return s.printJSON(sub)
				}
				s.printf("✓ Created sub-loop %s (%d slots", sub.ID, sub.Duration())
				if sub.IsHellLoop(loop.HellLoopThreshold) {
					s.printf(", hell loop")
				}
				s.printf(")\n")
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&start, "start", 0, "first time slot of the window")
	cmd.Flags().IntVar(&end, "end", 0, "time slot the window rewinds at")
	cmd.Flags().IntVar(&attempts, "attempts", 1, "number of retries")
	cmd.Flags().StringVar(&best, "best-outcome", "", "best outcome hash reached")
	cmd.Flags().StringSliceVar(&knowledge, "knowledge", nil, "knowledge gained")
	cmd.Flags().StringVar(&emotion, "emotion", "", "emotional effect")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func newSubLoopListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <loop-id>",
		Short: "List the sub-loops of a stored loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *session, store stores.Store) error {
				subs, err := store.ListSubLoops(s.ctx, args[0])
				if err != nil {
					return err
				}

				if jsonOutput {
					return s.printJSON(subs)
				}
				w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SUBLOOP\tWINDOW\tATTEMPTS\tEMOTION")
				for _, sub := range subs {
					fmt.Fprintf(w, "%s\t%d-%d\t%d\t%s\n", sub.ID, sub.StartTime, sub.EndTime, sub.AttemptsCount, sub.EmotionalEffect)
				}
				return w.Flush()
			})
		},
	}

	return cmd
}

func (s *session) printLoopTable(loops []*loop.Loop) {
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOOP\tEPOCH\tPARENT\tCLASS\tSTEPS\tTAGS")
	for _, l := range loops {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			l.ID, l.Epoch, dash(l.ParentID), dash(l.ClassID), len(l.DecisionTrace), strings.Join(l.Tags, ","))
	}
	_ = w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
