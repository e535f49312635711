package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/medsh/internal/infrastructure/logging"
)

// EnvConfigFile names the environment variable holding a config file path.
const EnvConfigFile = "MEDSH_CONFIG"

// Config holds all shell configuration.
type Config struct {
	Shell   ShellConfig   `toml:"shell" yaml:"shell"`
	Limits  LimitsConfig  `toml:"limits" yaml:"limits"`
	Logging LogConfig     `toml:"logging" yaml:"logging"`
	Metrics MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// ShellConfig holds prompt and session settings (MEDSH_*).
type ShellConfig struct {
	Name            string `split_words:"true" toml:"name" yaml:"name"`
	DefaultIdentity string `split_words:"true" toml:"default_identity" yaml:"default_identity"`
	Profile         string `split_words:"true" toml:"profile" yaml:"profile"`
}

// LimitsConfig holds the capacity constants (MEDSH_*).
type LimitsConfig struct {
	MaxIdentities int `split_words:"true" toml:"max_identities" yaml:"max_identities"`
	HashBuckets   int `split_words:"true" toml:"hash_buckets" yaml:"hash_buckets"`
	HistorySize   int `split_words:"true" toml:"history_size" yaml:"history_size"`
	MaxAliases    int `split_words:"true" toml:"max_aliases" yaml:"max_aliases"`
	MaxLineLength int `split_words:"true" toml:"max_line_length" yaml:"max_line_length"`
	MaxNameLength int `split_words:"true" toml:"max_name_length" yaml:"max_name_length"`
}

// LogConfig holds logging configuration (MEDSH_LOG_*).
type LogConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`
	Output      string `toml:"output" yaml:"output"`
}

// MetricsConfig holds metrics configuration (MEDSH_METRICS_*).
type MetricsConfig struct {
	// Addr enables a Prometheus listener when non-empty, e.g. "127.0.0.1:9464".
	Addr string `toml:"addr" yaml:"addr"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Shell: ShellConfig{
			Name:            "medsh",
			DefaultIdentity: "activeuser",
			Profile:         ".profile_medsh",
		},
		Limits: LimitsConfig{
			MaxIdentities: 10,
			HashBuckets:   100,
			HistorySize:   10,
			MaxAliases:    100,
			MaxLineLength: 79,
			MaxNameLength: 49,
		},
		Logging: LogConfig{
			Level:       "warn",
			Development: false,
			Output:      "stderr",
		},
	}
}

// Load builds configuration from defaults, then the config file (path, or
// $MEDSH_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML or YAML file at path onto c. Keys absent from
// the file keep their current values; unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(c); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.UnmarshalWithOptions(data, c, yaml.DisallowUnknownField()); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .toml, .yaml or .yml)", ext)
	}
	return nil
}

func (c *Config) applyEnv() error {
	sections := []struct {
		prefix string
		target interface{}
	}{
		{"MEDSH", &c.Shell},
		{"MEDSH", &c.Limits},
		{"MEDSH_LOG", &c.Logging},
		{"MEDSH_METRICS", &c.Metrics},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the shell cannot run with.
func (c *Config) Validate() error {
	var errs []error

	positive := map[string]int{
		"max_identities":  c.Limits.MaxIdentities,
		"hash_buckets":    c.Limits.HashBuckets,
		"history_size":    c.Limits.HistorySize,
		"max_aliases":     c.Limits.MaxAliases,
		"max_line_length": c.Limits.MaxLineLength,
		"max_name_length": c.Limits.MaxNameLength,
	}
	for _, key := range []string{"max_identities", "hash_buckets", "history_size", "max_aliases", "max_line_length", "max_name_length"} {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("limits.%s must be positive, got %d", key, positive[key]))
		}
	}

	if c.Shell.Name == "" {
		errs = append(errs, errors.New("shell.name must not be empty"))
	}
	if c.Shell.DefaultIdentity == "" {
		errs = append(errs, errors.New("shell.default_identity must not be empty"))
	} else if len(c.Shell.DefaultIdentity) > c.Limits.MaxNameLength {
		errs = append(errs, fmt.Errorf("shell.default_identity exceeds %d bytes", c.Limits.MaxNameLength))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoggerConfig converts the logging section for the logging package.
func (c *Config) LoggerConfig() logging.Config {
	output := c.Logging.Output
	if output == "" {
		output = "stderr"
	}
	return logging.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		OutputPaths: []string{output},
	}
}
