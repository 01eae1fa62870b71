package simulation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// AssertCompleted asserts that the run finished every tick.
func AssertCompleted(t *testing.T, result Result) {
	t.Helper()
	if result.Summary.Status != "completed" {
		t.Errorf("AssertCompleted: status %s (%s)", result.Summary.Status, result.Summary.Error)
	}
	if result.Final.Tick != int64(result.Summary.Ticks) {
		t.Errorf("AssertCompleted: final tick %d after %d ticks", result.Final.Tick, result.Summary.Ticks)
	}
}

// AssertMonotonic asserts that a series never decreases. With strict set it
// must increase at every sample.
func AssertMonotonic(t *testing.T, result Result, metric string, strict bool) {
	t.Helper()
	points := result.Series[metric]
	if len(points) == 0 {
		t.Fatalf("AssertMonotonic: no samples for %s", metric)
	}
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Value, points[i].Value
		if cur < prev || (strict && cur == prev) {
			t.Errorf("AssertMonotonic: %s fell from %.6g at tick %d to %.6g at tick %d",
				metric, prev, points[i-1].Tick, cur, points[i].Tick)
			return
		}
	}
}

// AssertWithin asserts that every sample from afterTick on lies in [min, max].
func AssertWithin(t *testing.T, result Result, metric string, min, max float64, afterTick int64) {
	t.Helper()
	checked := 0
	for _, p := range result.Series[metric] {
		if p.Tick < afterTick {
			continue
		}
		checked++
		if math.IsNaN(p.Value) || p.Value < min || p.Value > max {
			t.Errorf("AssertWithin: %s = %.6g at tick %d not in [%.4g, %.4g]", metric, p.Value, p.Tick, min, max)
		}
	}
	if checked == 0 {
		t.Errorf("AssertWithin: no samples of %s at or after tick %d", metric, afterTick)
	}
}

// AssertConverges asserts that the last window samples of a series spread
// by at most tol relative to the final value's magnitude (absolute when the
// final value is below 1).
func AssertConverges(t *testing.T, result Result, metric string, window int, tol float64) {
	t.Helper()
	values := result.Values(metric)
	if len(values) < window || window < 1 {
		t.Fatalf("AssertConverges: %s has %d samples, need %d", metric, len(values), window)
	}
	tail := values[len(values)-window:]
	spread := floats.Max(tail) - floats.Min(tail)
	scale := math.Max(1, math.Abs(tail[len(tail)-1]))
	if spread > tol*scale {
		t.Errorf("AssertConverges: %s spread %.6g over last %d samples exceeds %.4g", metric, spread, window, tol*scale)
	}
}

// AssertSameSeries asserts that two results recorded identical samples for metric.
func AssertSameSeries(t *testing.T, a, b Result, metric string) {
	t.Helper()
	va, vb := a.Values(metric), b.Values(metric)
	if len(va) != len(vb) {
		t.Fatalf("AssertSameSeries: %s has %d vs %d samples", metric, len(va), len(vb))
	}
	for i := range va {
		if va[i] != vb[i] && !(math.IsNaN(va[i]) && math.IsNaN(vb[i])) {
			t.Errorf("AssertSameSeries: %s differs at sample %d: %.6g vs %.6g", metric, i, va[i], vb[i])
			return
		}
	}
}
