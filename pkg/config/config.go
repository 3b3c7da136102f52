package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/CrazyDubya/Loop/pkg/engine"
	"github.com/CrazyDubya/Loop/pkg/generator"
	"github.com/CrazyDubya/Loop/pkg/stores"
	"github.com/CrazyDubya/Loop/pkg/telemetry"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvDatabase = "LOOPCTL_DB"
	EnvBackend  = "LOOPCTL_BACKEND"
	EnvLogLevel = "LOG_LEVEL"
)

// DefaultDatabasePath is the SQLite file used when no path is configured.
const DefaultDatabasePath = "loops.db"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: stores.BackendSQLite,
			Path:    DefaultDatabasePath,
		},
		Engine: EngineConfig{
			MaxPaths:  engine.DefaultMaxPaths,
			MaxDepth:  engine.DefaultMaxDepth,
			WalkSteps: generator.DefaultMaxSteps,
			Workers:   generator.DefaultWorkers,
		},
		Telemetry: telemetry.DefaultConfig(),
		Policies: PolicyConfig{
			Enabled: true,
			FailOn:  "error",
		},
	}
}

// Load reads a YAML configuration file over the defaults, applies
// environment overrides and validates the result. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" && c.Telemetry != nil {
		c.Telemetry.Logging.Level = strings.ToLower(v)
	}
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Engine.MaxPaths == 0 {
		c.Engine.MaxPaths = def.Engine.MaxPaths
	}
	if c.Engine.MaxDepth == 0 {
		c.Engine.MaxDepth = def.Engine.MaxDepth
	}
	if c.Engine.WalkSteps == 0 {
		c.Engine.WalkSteps = def.Engine.WalkSteps
	}
	if c.Engine.Workers == 0 {
		c.Engine.Workers = def.Engine.Workers
	}
	if c.Policies.FailOn == "" {
		c.Policies.FailOn = def.Policies.FailOn
	}
	if c.Telemetry == nil {
		c.Telemetry = def.Telemetry
	}
}

// Validate checks struct constraints and the telemetry section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("invalid telemetry config: %w", err)
		}
	}
	return nil
}

// StoreOptions converts the storage section for stores.Open.
func (c *Config) StoreOptions() stores.Options {
	return stores.Options{
		Backend:  c.Storage.Backend,
		Path:     c.Storage.Path,
		InMemory: c.Storage.InMemory,
	}
}
