package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/generator"
	"github.com/spf13/cobra"
)

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the structure of a day graph",
		Long: `Analyze the structure of a day graph: what the start node can reach, which
critical nodes every death depends on, the paths between two nodes, and a
Graphviz rendering.`,
	}

	cmd.AddCommand(newAnalyzeReachabilityCommand())
	cmd.AddCommand(newAnalyzeChokePointsCommand())
	cmd.AddCommand(newAnalyzePathsCommand())
	cmd.AddCommand(newAnalyzeStatsCommand())
	cmd.AddCommand(newAnalyzeDOTCommand())

	return cmd
}

func newAnalyzeReachabilityCommand() *cobra.Command {
	var knowledge []string

	cmd := &cobra.Command{
		Use:   "reachability",
		Short: "Report which nodes the start node can reach",
		Example: `  # Coverage for a protagonist who already knows a secret
  loopctl analyze reachability -g day.yaml --knowledge SECRET_X`,
		Args: cobra.NoArgs,
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

			report, err := generator.New(g, nil, s.logger).AnalyzeReachability(engine.NewSet(knowledge...))
			if err != nil {
				return err
			}

			if jsonOutput {
				return s.printJSON(report)
			}
			s.printf("Reachable: %d of %d nodes (%.1f%%)\n", report.ReachableNodes, report.TotalNodes, report.CoveragePercent)
			s.printf("  deaths:      %d\n", report.ReachableDeaths)
			s.printf("  revelations: %d\n", report.ReachableRevelations)
			if len(report.Unreachable) > 0 {
				s.printf("  unreachable: %s\n", strings.Join(report.Unreachable, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&knowledge, "knowledge", nil, "knowledge held at the start")

	return cmd
}

func newAnalyzeChokePointsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "choke-points",
		Short: "List critical nodes whose removal changes which deaths are reachable",
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

			points := g.ChokePoints()
			if jsonOutput {
				return s.printJSON(map[string][]string{"choke_points": points})
			}
			if len(points) == 0 {
				s.printf("No choke points\n")
				return nil
			}
			for _, id := range points {
				s.printf("%s\t%s\n", id, g.Node(id).Name)
			}
			return nil
		},
	}

	return cmd
}

func newAnalyzePathsCommand() *cobra.Command {
	var (
		from      string
		to        string
		knowledge []string
		facts     []string
		maxPaths  int
	)

	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Enumerate legal paths between two nodes",
		Example: `  # Paths from the start node to success
  loopctl analyze paths -g day.yaml --to success --max-paths 5`,
		Args: cobra.NoArgs,
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
			if from == "" {
				start := g.StartNode()
				if start == nil {
					return generator.ErrNoStartNode
				}
				from = start.ID
			}
			opts := engine.PathOptions{
				MaxPaths: s.cfg.Engine.MaxPaths,
				MaxDepth: s.cfg.Engine.MaxDepth,
			}
			if maxPaths > 0 {
				opts.MaxPaths = maxPaths
			}

			paths := g.FindPaths(from, to, engine.NewSet(knowledge...), engine.NewSet(facts...), opts)
			if jsonOutput {
				return s.printJSON(map[string]interface{}{"from": from, "to": to, "paths": paths})
			}
			if len(paths) == 0 {
				s.printf("No path from %s to %s\n", from, to)
				return nil
			}
			for i, p := range paths {
				s.printf("%d. %s\n", i+1, strings.Join(p, " -> "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start node (default: the graph's start node)")
	cmd.Flags().StringVar(&to, "to", "", "goal node")
	_ = cmd.MarkFlagRequired("to")
	cmd.Flags().StringSliceVar(&knowledge, "knowledge", nil, "knowledge held at the start")
	cmd.Flags().StringSliceVar(&facts, "facts", nil, "world facts true at the start")
	cmd.Flags().IntVar(&maxPaths, "max-paths", 0, "maximum number of paths (default from config)")

	return cmd
}

func newAnalyzeStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count the structural features of a day graph",
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

			stats := generator.New(g, nil, s.logger).Stats()
			if jsonOutput {
				return s.printJSON(stats)
			}
			s.printf("Nodes:             %d\n", stats.TotalNodes)
			s.printf("Transitions:       %d\n", stats.TotalTransitions)
			s.printf("Critical nodes:    %d\n", stats.CriticalNodes)
			s.printf("Death nodes:       %d\n", stats.DeathNodes)
			s.printf("Revelation nodes:  %d\n", stats.RevelationNodes)
			s.printf("Time slots:        %d\n", stats.TimeSlots)
			s.printf("Choke points:      %d\n", stats.ChokePoints)
			s.printf("Validation errors: %d\n", stats.ValidationErrors)
			return nil
		},
	}

	return cmd
}

func newAnalyzeDOTCommand() *cobra.Command {
	var (
		highlight []string
		loopID    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Render the day graph in Graphviz DOT format",
		Example: `  # Render with a stored loop's path highlighted
  loopctl analyze dot -g day.yaml --loop loop-1a2b3c4d5e6f | dot -Tsvg > day.svg`,
		Args: cobra.NoArgs,
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

			if loopID != "" {
				store, err := s.openStore()
				if err != nil {
					return err
				}
				defer s.closeStore(store)

				l, err := store.GetLoop(s.ctx, loopID)
				if err != nil {
					return err
				}
				highlight = append(highlight, l.DecisionTrace...)
			}

			dot := g.ToDOT(highlight)
			if output == "" {
				s.printf("%s", dot)
				return nil
			}
			if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			s.logger.Info().Str("file", output).Msg("DOT written")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&highlight, "highlight", nil, "node ids to highlight")
	cmd.Flags().StringVar(&loopID, "loop", "", "highlight the trace of a stored loop")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	return cmd
}
