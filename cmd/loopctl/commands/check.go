package commands

import (
	"errors"

	"github.com/CrazyDubya/Loop/pkg/stores"
	"github.com/spf13/cobra"
)

// ErrIntegrity is returned when the store fails its integrity check.
var ErrIntegrity = errors.New("integrity check failed")

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the integrity of the loop store",
		Long: `Check every stored loop, sub-loop and equivalence class.

This command checks:
  - Field constraints of loops, sub-loops and classes
  - Parent chains (missing parents and cycles)
  - Class references and sample loops
  - Epoch ordering along each lineage (warnings only)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(s *session, store stores.Store) error {
				if err := store.HealthCheck(s.ctx); err != nil {
					return err
				}

				report, err := stores.CheckIntegrity(s.ctx, store)
				if err != nil {
					return err
				}

				if jsonOutput {
					if err := s.printJSON(report); err != nil {
						return err
					}
				} else {
					s.printf("Checked %d loops and %d classes\n", report.LoopsChecked, report.ClassesChecked)
					for _, e := range report.Errors {
						s.printf("  ✗ %s\n", e)
					}
					for _, w := range report.Warnings {
						s.printf("  ~ %s\n", w)
					}
					if report.OK() {
						s.printf("\n✓ Store is consistent\n")
					}
				}

				if !report.OK() {
					return ErrIntegrity
				}
				return nil
			})
		},
	}

	return cmd
}
