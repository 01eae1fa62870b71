package simulation

import (
	"github.com/nvandessel/tickframe/internal/experiment"
	"github.com/nvandessel/tickframe/internal/store"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// Scenario defines one simulated experiment.
type Scenario struct {
	Name string

	// Initial selects the initial-state builder. Zero value: a single seed entity.
	Initial experiment.InitialConfig

	// Rule selects the update rule.
	Rule experiment.RuleConfig

	// Seed for the run's random source. Zero uses 1.
	Seed uint64

	// Ticks is the number of ticks to run.
	Ticks int

	// Probes are recorded every tick.
	Probes []string

	// Extra adds observers (shell, pi_drift, centrality) next to the recorder.
	Extra []experiment.ObserverConfig
}

// Config converts the scenario into an experiment config.
func (s Scenario) Config() *experiment.Config {
	seed := s.Seed
	if seed == 0 {
		seed = 1
	}
	observers := []experiment.ObserverConfig{
		{Kind: experiment.KindRecorder, Name: "series", Every: 1, Probes: s.Probes},
	}
	observers = append(observers, s.Extra...)
	return &experiment.Config{
		Name:      s.Name,
		MaxTicks:  s.Ticks,
		Seed:      seed,
		Initial:   s.Initial,
		Rule:      s.Rule,
		Observers: observers,
	}
}

// Result captures a finished scenario.
type Result struct {
	Summary *experiment.Summary

	// Series maps each probe to its samples ordered by tick.
	Series map[string][]store.Point

	// Final is the substrate read back from the run's snapshot.
	Final *substrate.State
}

// Values returns the sample values of a series.
func (r Result) Values(name string) []float64 {
	points := r.Series[name]
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

// Last returns the final sample of a series and whether one exists.
func (r Result) Last(name string) (float64, bool) {
	points := r.Series[name]
	if len(points) == 0 {
		return 0, false
	}
	return points[len(points)-1].Value, true
}
