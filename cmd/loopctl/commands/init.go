package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/CrazyDubya/Loop/pkg/config"
	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is written by init when --config is not given.
const DefaultConfigFile = "loopctl.yaml"

const defaultConfig = `# loopctl configuration

# Day graph used when --graph is not given
graph: %s

# Loop storage
storage:
  backend: %s
  path: %s

# Search and generation
engine:
  seed: 0
  max_paths: %d
  max_depth: %d
  walk_steps: %d
  workers: %d

# Graph lint policies
policies:
  enabled: true
  fail_on: error

# Telemetry settings
telemetry:
  logging:
    level: info
    format: console
    output: stderr
`

func newInitCommand() *cobra.Command {
	var (
		sample bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a loopctl workspace",
		Long: `Initialize a loopctl workspace: create and migrate the loop store and write
a default configuration file.

The --sample flag also writes the built-in sample day graph next to the
configuration.`,
		Example: `  # Initialize with a SQLite store
  loopctl init

  # Initialize a badger store with the sample graph
  loopctl init --backend badger --db ./loops --sample`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := configPath
			if cfgFile == "" {
				cfgFile = DefaultConfigFile
			}

			// The config file is read when it exists and written otherwise.
			existing := cfgFile
			if _, err := os.Stat(cfgFile); errors.Is(err, fs.ErrNotExist) {
				existing = ""
			}
			s, err := openSession(cmd, existing)
			if err != nil {
				return err
			}
			defer s.Close()
			s.logger.Info().
				Str("config", cfgFile).
				Str("backend", s.cfg.Storage.Backend).
				Msg("Initializing workspace")

			// Step 1: Create and migrate the store
			if dir := filepath.Dir(s.cfg.Storage.Path); !s.cfg.Storage.InMemory && dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}
			store, err := s.openStore()
			if err != nil {
				return err
			}
			s.closeStore(store)
			s.printf("✓ Initialized %s store: %s\n", s.cfg.Storage.Backend, s.cfg.Storage.Path)

			// Step 2: Write the sample graph
			graphFile := s.cfg.Graph
			if sample {
				if graphFile == "" {
					graphFile = filepath.Join(filepath.Dir(cfgFile), "day.yaml")
				}
				if err := writeSampleGraph(graphFile, force); err != nil {
					return err
				}
				s.printf("✓ Wrote sample day graph: %s\n", graphFile)
			}

			// Step 3: Create default config file
			if _, err := os.Stat(cfgFile); err == nil && !force {
				s.printf("✓ Config file already exists: %s\n", cfgFile)
			} else {
				content := fmt.Sprintf(defaultConfig,
					graphFile,
					s.cfg.Storage.Backend,
					s.cfg.Storage.Path,
					s.cfg.Engine.MaxPaths,
					s.cfg.Engine.MaxDepth,
					s.cfg.Engine.WalkSteps,
					s.cfg.Engine.Workers,
				)
				if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				s.printf("✓ Created config file: %s\n", cfgFile)
			}

			// Done
			s.printf("\nWorkspace initialized.\n\n")
			s.printf("Next steps:\n")
			s.printf("  1. Validate the day graph:\n")
			s.printf("     loopctl validate -c %s\n\n", cfgFile)
			s.printf("  2. Live a loop:\n")
			s.printf("     loopctl run cause --target <node> -c %s\n\n", cfgFile)

			return nil
		},
	}

	cmd.Flags().BoolVar(&sample, "sample", false, "write the sample day graph")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")

	return cmd
}

// writeSampleGraph writes the sample definition as YAML or JSON depending on
// the file extension.
func writeSampleGraph(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("graph file %s already exists; use --force to overwrite", path)
	}

	format, err := config.FormatOf(path)
	if err != nil {
		return err
	}

	def := engine.SampleDefinition()
	var data []byte
	switch format {
	case config.FormatYAML:
		data, err = yaml.Marshal(def)
	case config.FormatJSON:
		data, err = marshalIndent(def)
	default:
		return fmt.Errorf("the sample graph can only be written as YAML or JSON, not %s", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode sample graph: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
