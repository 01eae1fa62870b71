// Package experiment binds an initial-state builder, an update rule and a
// list of observers into a declarative, validated configuration and runs it.
package experiment

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/tickframe/internal/config"
	"github.com/nvandessel/tickframe/internal/observer"
	"github.com/nvandessel/tickframe/internal/rule"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid experiment config")

// Observer kinds accepted in ObserverConfig.Kind.
const (
	KindRecorder   = "recorder"
	KindShell      = "shell"
	KindPiDrift    = "pi_drift"
	KindCentrality = "centrality"
	KindEvents     = "events"
)

// ObserverKinds lists the accepted observer kinds.
var ObserverKinds = []string{KindRecorder, KindShell, KindPiDrift, KindCentrality, KindEvents}

// Config is one experiment: where the substrate starts, how it evolves and
// what is measured.
type Config struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	MaxTicks    int              `json:"max_ticks" yaml:"max_ticks"`
	Seed        uint64           `json:"seed,omitempty" yaml:"seed,omitempty"`
	Initial     InitialConfig    `json:"initial" yaml:"initial"`
	Rule        RuleConfig       `json:"rule" yaml:"rule"`
	Observers   []ObserverConfig `json:"observers" yaml:"observers"`
	Output      OutputConfig     `json:"output,omitempty" yaml:"output,omitempty"`
}

// InitialConfig selects an initial-state builder.
type InitialConfig struct {
	Kind   string           `json:"kind" yaml:"kind"`
	Params substrate.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// RuleConfig selects an update rule.
type RuleConfig struct {
	Name   string           `json:"name" yaml:"name"`
	Params substrate.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// ObserverConfig declares one observer.
type ObserverConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	// Name distinguishes recorders; it also names their output files. Defaults to the kind.
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Every  int      `json:"every,omitempty" yaml:"every,omitempty"`
	Probes []string `json:"probes,omitempty" yaml:"probes,omitempty"`
	Window int      `json:"window,omitempty" yaml:"window,omitempty"`
}

// DisplayName returns Name, or Kind when Name is empty.
func (o ObserverConfig) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	if o.Kind == KindRecorder {
		return "metrics"
	}
	return o.Kind
}

// OutputConfig overrides where and how recorder rows are written.
type OutputConfig struct {
	Dir     string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	Formats []string `json:"formats,omitempty" yaml:"formats,omitempty"`
}

// Parse decodes a YAML experiment. Unknown keys are rejected. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing experiment: %w", err)
	}
	return &cfg, nil
}

// LoadFile reads and parses a YAML experiment file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal encodes the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the config. Every failure wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name is required")
	}
	if strings.ContainsAny(c.Name, `/\`) || c.Name == "." || c.Name == ".." {
		return invalid("name %q must not contain path separators", c.Name)
	}
	if c.MaxTicks <= 0 {
		return invalid("max_ticks must be positive, got %d", c.MaxTicks)
	}
	if len(c.Observers) == 0 {
		return invalid("at least one observer is required")
	}

	if c.Initial.Kind != "" && !contains(substrate.BuilderNames(), c.Initial.Kind) {
		return invalid("unknown initial kind %q (known: %v)", c.Initial.Kind, substrate.BuilderNames())
	}
	if !contains(rule.Names(), c.Rule.Name) {
		return invalid("unknown rule %q (known: %v)", c.Rule.Name, rule.Names())
	}

	names := make(map[string]bool, len(c.Observers))
	for i, o := range c.Observers {
		if !contains(ObserverKinds, o.Kind) {
			return invalid("observer %d: unknown kind %q (known: %v)", i, o.Kind, ObserverKinds)
		}
		if names[o.DisplayName()] {
			return invalid("observer %d: duplicate name %q", i, o.DisplayName())
		}
		names[o.DisplayName()] = true
		if o.Every < 0 || o.Window < 0 {
			return invalid("observer %s: every and window must be non-negative", o.DisplayName())
		}
		if o.Kind == KindRecorder {
			if len(o.Probes) == 0 {
				return invalid("observer %s: recorder needs at least one probe", o.DisplayName())
			}
			for _, p := range o.Probes {
				if _, err := observer.LookupProbe(p); err != nil {
					return invalid("observer %s: %v", o.DisplayName(), err)
				}
			}
		} else if len(o.Probes) > 0 {
			return invalid("observer %s: probes only apply to recorders", o.DisplayName())
		}
	}

	for _, f := range c.Output.Formats {
		if !config.IsValidFormat(f) {
			return invalid("unknown output format %q (valid: %v)", f, config.ValidFormats)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
