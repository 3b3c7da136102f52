package commands

import (
	"sync"

	"github.com/CrazyDubya/Loop/pkg/config"
	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/policy"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [graph]",
		Short: "Revalidate a day graph whenever it or a policy changes",
		Long: `Watch a day graph file and the configured policy paths. Every change
reloads the graph, rebuilds it and reruns the lint policies. Runs until
interrupted.`,
		Example: `  # Watch the configured graph and policies
  loopctl watch

  # Watch a CUE package directory
  loopctl watch ./graphs/day`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			path, err := s.graphFile(args)
			if err != nil {
				return err
			}
			loader, err := s.graphLoader()
			if err != nil {
				return err
			}
			pe, err := s.newPolicyEngine()
			if err != nil {
				return err
			}

			w := &graphWatch{session: s, path: path, policies: pe}

			// Initial pass
			g, err := loader.Load(s.ctx, path)
			w.onGraph(g, err)

			gw := config.NewGraphWatcher(loader, path, s.logger)
			if err := gw.Watch(s.ctx, w.onGraph); err != nil {
				return err
			}
			defer func() { _ = gw.Stop() }()

			if len(s.cfg.Policies.Paths) > 0 {
				pl := policy.NewLoader(s.logger)
				if err := pl.Watch(s.ctx, s.cfg.Policies.Paths, w.onPolicies); err != nil {
					return err
				}
				defer func() { _ = pl.StopWatching() }()
			}

			s.logger.Info().Str("graph", path).Msg("Watching for changes")
			<-s.ctx.Done()
			return nil
		},
	}

	return cmd
}

// graphWatch relints the latest good graph whenever the graph or the
// policies change.
type graphWatch struct {
	*session
	path     string
	policies *policy.Engine

	mu      sync.Mutex
	current *engine.GraphDefinition

	outMu sync.Mutex
}

// say serializes output from the graph and policy watchers.
func (w *graphWatch) say(format string, args ...interface{}) {
	w.outMu.Lock()
	defer w.outMu.Unlock()
	w.printf(format, args...)
}

func (w *graphWatch) onGraph(g *engine.DayGraph, err error) {
	if err != nil {
		w.say("✗ %s: %v\n", w.path, err)
		return
	}

	w.mu.Lock()
	w.current = g.Definition()
	w.mu.Unlock()

	for _, d := range g.Validate() {
		w.say("✗ %s\n", d)
	}
	w.relint()
}

func (w *graphWatch) onPolicies(policies []policy.Policy) error {
	if err := w.policies.Reload(w.ctx, policies); err != nil {
		w.say("✗ policies: %v\n", err)
		return err
	}
	w.say("Policies reloaded (%d user policies)\n", len(policies))
	w.relint()
	return nil
}

func (w *graphWatch) relint() {
	w.mu.Lock()
	def := w.current
	w.mu.Unlock()
	if def == nil || !w.cfg.Policies.Enabled {
		return
	}

	res, err := w.policies.Lint(w.ctx, def, w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Lint failed")
		return
	}
	for _, v := range res.All() {
		w.say("%s %s\n", severityMark(v.Severity), v.String())
	}
	for _, e := range res.Errors {
		w.say("! %s\n", e)
	}
	summary := res.Summary()
	w.say("%s: %d nodes, %d violations, %d warnings\n",
		w.path, len(def.Nodes), summary.TotalViolations, summary.TotalWarnings)
}
