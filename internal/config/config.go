// Package config loads mnemo configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvDatabase  = "MNEMO_DB"
	EnvRules     = "MNEMO_RULES"
	EnvLogLevel  = "MNEMO_LOG_LEVEL"
	EnvLogFormat = "MNEMO_LOG_FORMAT"
	EnvBatchMax  = "MNEMO_BATCH_MAX"
)

// Config holds all mnemo configuration.
type Config struct {
	// Database is the SQLite file path.
	Database string `yaml:"database"`

	// RulesFile, when set, replaces the routing table at startup.
	RulesFile string `yaml:"rules_file"`

	Logging LoggingConfig `yaml:"logging"`
	Ingest  IngestConfig  `yaml:"ingest"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// IngestConfig configures capture.
type IngestConfig struct {
	BatchMax int `yaml:"batch_max"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: "mnemo.db",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Ingest: IngestConfig{
			BatchMax: 100,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Database = v
	}
	if v, ok := lookup(EnvRules); ok && v != "" {
		c.RulesFile = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		c.Logging.Format = v
	}
	if v, ok := lookup(EnvBatchMax); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvBatchMax, v)
		}
		c.Ingest.BatchMax = n
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}
	if c.Ingest.BatchMax < 1 {
		return fmt.Errorf("ingest.batch_max must be at least 1, got %d", c.Ingest.BatchMax)
	}
	return nil
}
