package observer

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/nvandessel/tickframe/internal/substrate"
)

// DefaultPiWindow is the number of trailing ticks PiDriftObserver averages.
const DefaultPiWindow = 10

// PiDriftObserver estimates π from BFS shell sizes around the origin: for a
// planar substrate the shell at hop r should hold about 2πr entities, so
// each tick's estimate is the mean of |shell(r)| / 2r over r >= 1.
type PiDriftObserver struct {
	window    int
	estimates []float64
}

// NewPiDriftObserver returns an observer averaging the last window ticks.
func NewPiDriftObserver(window int) *PiDriftObserver {
	if window < 1 {
		window = DefaultPiWindow
	}
	return &PiDriftObserver{window: window}
}

func (o *PiDriftObserver) Name() string { return "pi_drift" }

func (o *PiDriftObserver) BeforeTick(context.Context, *substrate.State) error { return nil }

func (o *PiDriftObserver) AfterTick(_ context.Context, s *substrate.State) error {
	origin, ok := s.Origin()
	if !ok {
		return nil
	}
	shells := substrate.Shells(s.Graph, origin)
	if len(shells) < 2 {
		return nil
	}
	ratios := make([]float64, 0, len(shells)-1)
	for r := 1; r < len(shells); r++ {
		ratios = append(ratios, float64(len(shells[r]))/float64(2*r))
	}
	o.estimates = append(o.estimates, stat.Mean(ratios, nil))
	return nil
}

// Estimates returns the per-tick estimates recorded so far.
func (o *PiDriftObserver) Estimates() []float64 {
	return append([]float64(nil), o.estimates...)
}

func (o *PiDriftObserver) tail() []float64 {
	if len(o.estimates) <= o.window {
		return o.estimates
	}
	return o.estimates[len(o.estimates)-o.window:]
}

func (o *PiDriftObserver) Summary() map[string]float64 {
	tail := o.tail()
	if len(tail) == 0 {
		return map[string]float64{}
	}
	mean := stat.Mean(tail, nil)
	out := map[string]float64{
		"pi_shell_mean":  mean,
		"pi_shell_drift": mean - math.Pi,
	}
	if len(tail) > 1 {
		out["pi_shell_stddev"] = stat.StdDev(tail, nil)
	}
	return out
}
