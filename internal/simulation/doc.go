// Package simulation provides a test harness for checking the physical
// outcomes of update rules over many ticks.
//
// The harness runs the real experiment Runner, engine, observers and
// SQLiteRunStore. No mocks. A Scenario names an initial state, a rule and
// the probes to record; the Result holds every recorded series read back
// from the store, plus the final substrate from its snapshot.
//
// Each test gets an isolated SQLite database and results directory via
// t.TempDir() and a sandboxed HOME so user data is never touched.
//
// Usage:
//
//	func TestGammaSettles(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:   "gamma-settles",
//	        Rule:   experiment.RuleConfig{Name: "gamma", Params: substrate.Params{"drift": 0, "jitter": 0}},
//	        Ticks:  60,
//	        Probes: []string{"gamma_total"},
//	    })
//	    simulation.AssertConverges(t, result, "gamma_total", 10, 1e-3)
//	}
package simulation
