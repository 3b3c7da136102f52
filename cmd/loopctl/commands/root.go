package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	graphPath  string
	dbPath     string
	backend    string
	seed       uint64
	verbose    bool
	jsonOutput bool

	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version

	rootCmd := &cobra.Command{
		Use:   "loopctl",
		Short: "loopctl - time loop day graph engine",
		Long: `loopctl models a single repeating day as a directed graph of timed events
and generates, records and inspects the loops a protagonist lives through it.

Features:
  - Day graphs in JSON, YAML or CUE with schema validation
  - Rego lint policies for graph authoring
  - Six loop operators: cause, avoid, trigger, relive, slightly-change, greatly-change
  - Random, goal-directed, chained and parallel loop generation
  - Loop storage in SQLite or Badger with equivalence classes and lineage
  - Scripted outcome classification via Starlark`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&graphPath, "graph", "g", "", "day graph file (.json, .yaml, .cue)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "loop store path")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "loop store backend (sqlite, badger)")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newSimulateCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newLoopsCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
