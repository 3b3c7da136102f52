package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/CrazyDubya/Loop/pkg/config"
	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/loop"
	"github.com/CrazyDubya/Loop/pkg/stores"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// session holds what one command invocation shares: the merged config, the
// telemetry carried in ctx and the seed every random choice derives from.
type session struct {
	ctx    context.Context
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger zerolog.Logger
	seed   uint64
	out    io.Writer
}

// newSession loads the config, applies the global flags over it and starts
// telemetry.
func newSession(cmd *cobra.Command) (*session, error) {
	return openSession(cmd, configPath)
}

// openSession is newSession reading the config from cfgFile. An empty
// cfgFile uses the defaults.
func openSession(cmd *cobra.Command, cfgFile string) (*session, error) {
	cfg, err := loadConfig(cmd, cfgFile)
	if err != nil {
		return nil, err
	}

	cfg.Telemetry.ServiceVersion = buildVersion
	tel, err := telemetry.NewTelemetry(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	s := &session{
		ctx:    tel.WithContext(cmd.Context()),
		cfg:    cfg,
		tel:    tel,
		logger: tel.Logger.NewComponentLogger("cli").Zerolog(),
		seed:   cfg.Engine.Seed,
		out:    cmd.OutOrStdout(),
	}
	if s.seed == 0 {
		s.seed = rand.Uint64()
		s.logger.Debug().Uint64("seed", s.seed).Msg("Picked random seed")
	}
	return s, nil
}

func loadConfig(cmd *cobra.Command, cfgFile string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("graph") {
		cfg.Graph = graphPath
	}
	if flags.Changed("db") {
		cfg.Storage.Path = dbPath
	}
	if flags.Changed("backend") {
		cfg.Storage.Backend = backend
	}
	if flags.Changed("seed") {
		cfg.Engine.Seed = seed
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Close flushes telemetry.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tel.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// rand returns a generator seeded from the session seed.
func (s *session) rand() *rand.Rand {
	return engine.NewRand(s.seed)
}

// graphFile resolves the graph file from the first argument or the config.
func (s *session) graphFile(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if s.cfg.Graph != "" {
		return s.cfg.Graph, nil
	}
	return "", errors.New("no day graph given; pass --graph or set graph in the config file")
}

// graphLoader returns a loader using the configured outcome script, if any.
func (s *session) graphLoader() (*config.GraphLoader, error) {
	var classifier engine.OutcomeClassifier
	if s.cfg.OutcomeScript != "" {
		sc, err := config.LoadStarlarkClassifier(s.ctx, s.cfg.OutcomeScript, s.logger)
		if err != nil {
			return nil, err
		}
		classifier = sc
	}
	return config.NewGraphLoader(classifier), nil
}

// loadGraph reads, validates and builds the day graph.
func (s *session) loadGraph(args []string) (*engine.DayGraph, *engine.GraphDefinition, error) {
	path, err := s.graphFile(args)
	if err != nil {
		return nil, nil, err
	}
	loader, err := s.graphLoader()
	if err != nil {
		return nil, nil, err
	}
	def, err := loader.LoadDefinition(s.ctx, path)
	if err != nil {
		return nil, nil, err
	}
	g, err := loader.Build(def)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build graph %s: %w", path, err)
	}

	s.tel.Metrics.SetGraphNodes(len(g.Nodes()))
	s.logger.Debug().
		Str("graph", path).
		Int("nodes", len(g.Nodes())).
		Int("transitions", len(g.Transitions())).
		Msg("Graph loaded")
	return g, def, nil
}

// openStore opens and migrates the configured loop store.
func (s *session) openStore() (stores.Store, error) {
	store, err := stores.Open(s.ctx, s.cfg.StoreOptions())
	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("backend", s.cfg.Storage.Backend).
		Str("path", s.cfg.Storage.Path).
		Msg("Store opened")
	return store, nil
}

func (s *session) closeStore(store stores.Store) {
	if err := store.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close store")
	}
}

func (s *session) printJSON(v interface{}) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *session) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// parseEpoch accepts an empty string as naive.
func parseEpoch(name string) (loop.Epoch, error) {
	if name == "" {
		return loop.EpochNaive, nil
	}
	return loop.ParseEpoch(name)
}

// printSimulation writes the human form of a simulation result.
func (s *session) printSimulation(r *engine.SimulationResult) {
	if r == nil {
		return
	}
	status := "ok"
	if !r.Success {
		status = "failed"
	}
	s.printf("Simulation: %s\n", status)
	if r.ErrorMessage != "" {
		s.printf("  reason:    %s\n", r.ErrorMessage)
	}
	s.printf("  trace:     %v\n", r.DecisionTrace)
	if r.DeathNode != "" {
		s.printf("  death:     %s\n", r.DeathNode)
	}
	if len(r.KnowledgeGained) > 0 {
		s.printf("  learned:   %v\n", r.KnowledgeGained)
	}
	if r.Outcome.EndingType != "" {
		s.printf("  ending:    %s\n", r.Outcome.EndingType)
		s.printf("  survivors: %v\n", r.Outcome.Survivors)
		s.printf("  deaths:    %v\n", r.Outcome.Deaths)
	}
	if r.OutcomeHash != "" {
		s.printf("  outcome:   %s\n", r.OutcomeHash)
		s.printf("  knowledge: %s\n", r.KnowledgeID)
	}
}

// printLoop writes the human form of a loop.
func (s *session) printLoop(l *loop.Loop) {
	if l == nil {
		return
	}
	s.printf("Loop %s\n", l.ID)
	s.printf("  epoch:       %s\n", l.Epoch)
	if l.ParentID != "" {
		s.printf("  parent:      %s\n", l.ParentID)
	}
	if l.ClassID != "" {
		s.printf("  class:       %s\n", l.ClassID)
	}
	s.printf("  trace:       %v\n", l.DecisionTrace)
	s.printf("  tags:        %v\n", l.Tags)
	s.printf("  key choices: %#x\n", l.KeyChoices)
	s.printf("  outcome:     %s\n", l.OutcomeHash)
	s.printf("  knowledge:   %s\n", l.KnowledgeID)
	s.printf("  created:     %s\n", l.CreatedAt.Format(time.RFC3339))
}

func marshalIndent(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
