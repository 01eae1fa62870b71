// Package config provides unified configuration loading for tickframe.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside a .tickframe directory.
const FileName = "config.yaml"

// TickConfig contains all tickframe configuration settings.
type TickConfig struct {
	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Results controls where experiment outputs go and how long they are kept.
	Results ResultsConfig `json:"results" yaml:"results"`

	// Store selects the run store backend.
	Store StoreConfig `json:"store" yaml:"store"`

	// Defaults fills experiment fields the experiment file leaves unset.
	Defaults DefaultsConfig `json:"defaults" yaml:"defaults"`
}

// LoggingConfig configures tickframe's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", "trace", "warn" or "error".
	// "debug" and "trace" also write per-tick events to <results>/events.jsonl.
	Level string `json:"level" yaml:"level"`
}

// ResultsConfig configures experiment output.
type ResultsConfig struct {
	// Dir is the root for per-run result directories. Relative paths are
	// resolved against the project root. Supports ${VAR} syntax.
	Dir string `json:"dir" yaml:"dir"`

	// Formats lists the metric sinks written for every recorder: csv, jsonl, arrow.
	Formats []string `json:"formats" yaml:"formats"`

	// Keep is the number of most recent run directories kept by prune (0 = unlimited).
	Keep int `json:"keep" yaml:"keep"`

	// MaxAge removes run directories older than this on prune ("30d", "2w", "720h"; empty = no limit).
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// MaxSize keeps the newest run directories up to this total size on prune ("500MB", "1GB"; empty = no limit).
	MaxSize string `json:"max_size,omitempty" yaml:"max_size,omitempty"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	// Backend is "sqlite" (default) or "memory".
	Backend string `json:"backend" yaml:"backend"`
}

// DefaultsConfig holds fallbacks for experiment files.
type DefaultsConfig struct {
	// Seed is used when an experiment does not set one.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// ValidFormats lists the accepted values for Results.Formats.
var ValidFormats = []string{"csv", "jsonl", "arrow"}

// Default returns a TickConfig with sensible defaults.
func Default() *TickConfig {
	return &TickConfig{
		Logging: LoggingConfig{
			Level: "info",
		},
		Results: ResultsConfig{
			Dir:     "results",
			Formats: []string{"csv"},
			Keep:    0,
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Defaults: DefaultsConfig{
			Seed: 1,
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.tickframe/config.yaml -> <projectRoot>/.tickframe/config.yaml -> environment variables.
// Each file only overrides the keys it sets.
func Load(projectRoot string) (*TickConfig, error) {
	config := Default()

	var paths []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".tickframe", FileName))
	}
	if projectRoot != "" {
		paths = append(paths, filepath.Join(projectRoot, ".tickframe", FileName))
	}

	for _, path := range paths {
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		if err := mergeFile(config, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file over the defaults.
func LoadFromFile(path string) (*TickConfig, error) {
	config := Default()
	if err := mergeFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

func mergeFile(config *TickConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	config.Results.Dir = expandEnvVars(config.Results.Dir)
	return nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *TickConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ResultsRoot resolves Results.Dir against projectRoot.
func (c *TickConfig) ResultsRoot(projectRoot string) string {
	if filepath.IsAbs(c.Results.Dir) {
		return c.Results.Dir
	}
	return filepath.Join(projectRoot, c.Results.Dir)
}

// Validate checks that the configuration is valid.
func (c *TickConfig) Validate() error {
	validLevels := map[string]bool{"info": true, "debug": true, "trace": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, warn, error, or empty for default)", c.Logging.Level)
	}

	if c.Results.Dir == "" {
		return fmt.Errorf("results.dir must not be empty")
	}
	for _, f := range c.Results.Formats {
		if !IsValidFormat(f) {
			return fmt.Errorf("invalid results format: %s (valid: %s)", f, strings.Join(ValidFormats, ", "))
		}
	}
	if c.Results.Keep < 0 {
		return fmt.Errorf("results.keep must be non-negative, got %d", c.Results.Keep)
	}

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("invalid store backend: %s (valid: sqlite, memory)", c.Store.Backend)
	}

	return nil
}

// IsValidFormat reports whether f names a known metrics format.
func IsValidFormat(f string) bool {
	for _, v := range ValidFormats {
		if f == v {
			return true
		}
	}
	return false
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *TickConfig) {
	if v := os.Getenv("TICKFRAME_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("TICKFRAME_RESULTS_DIR"); v != "" {
		config.Results.Dir = expandEnvVars(v)
	}

	if v := os.Getenv("TICKFRAME_FORMATS"); v != "" {
		var formats []string
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, f)
			}
		}
		config.Results.Formats = formats
	}

	if v := os.Getenv("TICKFRAME_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			config.Defaults.Seed = n
		}
	}

	if v := os.Getenv("TICKFRAME_STORE"); v != "" {
		config.Store.Backend = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
