package experiment

import (
	"fmt"
	"sort"

	"github.com/nvandessel/tickframe/internal/substrate"
)

var presets = map[string]func() *Config{
	"shell-growth":    shellGrowth,
	"pi-drift":        piDrift,
	"anisotropy":      anisotropy,
	"gamma-composite": gammaComposite,
}

// PresetNames returns the built-in experiment names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a fresh copy of a built-in experiment.
func Preset(name string) (*Config, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (known: %v)", name, PresetNames())
	}
	return build(), nil
}

// shellGrowth grows a graph from a single seed and watches the BFS horizon.
func shellGrowth() *Config {
	return &Config{
		Name:        "shell-growth",
		Description: "Graph growth from one seed; does the horizon radius grow monotonically?",
		MaxTicks:    40,
		Seed:        7,
		Initial:     InitialConfig{Kind: "seed"},
		Rule: RuleConfig{Name: "growth", Params: substrate.Params{
			"birth_rate":  0.2,
			"link_rate":   0.3,
			"edge_decay":  0,
			"rewire_rate": 0,
			"bias_edges":  0,
		}},
		Observers: []ObserverConfig{
			{Kind: KindRecorder, Every: 1, Probes: []string{"entities", "edges", "mean_degree", "horizon_radius", "components"}},
			{Kind: KindShell},
		},
	}
}

// piDrift perturbs a planar lattice and tracks how far geometric and
// shell-based π estimates drift.
func piDrift() *Config {
	return &Config{
		Name:        "pi-drift",
		Description: "Planar lattice under slow growth and rewiring; π estimates from area and from BFS shells",
		MaxTicks:    60,
		Seed:        11,
		Initial:     InitialConfig{Kind: "lattice", Params: substrate.Params{"size": 11, "dims": 2}},
		Rule: RuleConfig{Name: "growth", Params: substrate.Params{
			"birth_rate":  0.01,
			"link_rate":   0.5,
			"edge_decay":  0.005,
			"rewire_rate": 0.5,
			"bias_edges":  0,
		}},
		Observers: []ObserverConfig{
			{Kind: KindRecorder, Every: 1, Probes: []string{"pi_estimate", "horizon_radius", "mean_radius", "entities"}},
			{Kind: KindPiDrift, Window: 20},
		},
	}
}

// anisotropy biases new edges toward one side of the x axis and measures
// hub formation.
func anisotropy() *Config {
	return &Config{
		Name:        "anisotropy",
		Description: "Degree-preferential attachment restricted to x > 0; magnetism-like hub anisotropy",
		MaxTicks:    80,
		Seed:        3,
		Initial:     InitialConfig{Kind: "ring", Params: substrate.Params{"n": 12}},
		Rule: RuleConfig{Name: "growth", Params: substrate.Params{
			"birth_rate":     0.05,
			"bias_edges":     2,
			"bias_asymmetry": 0.8,
			"bias_axis":      0,
		}},
		Observers: []ObserverConfig{
			{Kind: KindRecorder, Every: 5, Probes: []string{"entities", "edges", "hub_score", "degree_stddev"}},
			{Kind: KindCentrality, Every: 10},
		},
	}
}

// gammaComposite scatters entities in a plane; they paint a shared gamma
// field, drift up its gradient and bind into composite objects.
func gammaComposite() *Config {
	return &Config{
		Name:        "gamma-composite",
		Description: "Entities paint a decaying gamma field, drift up its gradient and bind on contact",
		MaxTicks:    50,
		Seed:        5,
		Initial:     InitialConfig{Kind: "random", Params: substrate.Params{"n": 30, "side": 8, "p": 0, "dims": 2}},
		Rule: RuleConfig{Name: "gamma", Params: substrate.Params{
			"paint_amplitude": 1,
			"paint_radius":    2,
			"decay_rate":      0.05,
			"diffusion":       0.1,
			"drift":           0.5,
			"jitter":          0.2,
		}},
		Observers: []ObserverConfig{
			{Kind: KindRecorder, Every: 1, Probes: []string{"gamma_total", "gamma_max", "gamma_support", "edges", "components", "mean_radius"}},
			{Kind: KindEvents},
		},
	}
}
