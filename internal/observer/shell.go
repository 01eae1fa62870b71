package observer

import (
	"context"

	"github.com/nvandessel/tickframe/internal/substrate"
)

// ShellObserver tracks the horizon radius around the origin entity.
type ShellObserver struct {
	radii     []int
	grew      int
	monotonic bool
}

// NewShellObserver returns an empty ShellObserver.
func NewShellObserver() *ShellObserver {
	return &ShellObserver{monotonic: true}
}

func (o *ShellObserver) Name() string { return "shell" }

func (o *ShellObserver) BeforeTick(context.Context, *substrate.State) error { return nil }

func (o *ShellObserver) AfterTick(_ context.Context, s *substrate.State) error {
	r := 0
	if origin, ok := s.Origin(); ok {
		r = substrate.HorizonRadius(s.Graph, origin)
	}
	if n := len(o.radii); n > 0 {
		switch prev := o.radii[n-1]; {
		case r > prev:
			o.grew++
		case r < prev:
			o.monotonic = false
		}
	}
	o.radii = append(o.radii, r)
	return nil
}

// Radii returns the horizon radius after each tick.
func (o *ShellObserver) Radii() []int {
	return append([]int(nil), o.radii...)
}

func (o *ShellObserver) Summary() map[string]float64 {
	out := map[string]float64{
		"horizon_growth_ticks": float64(o.grew),
		"horizon_monotonic":    0,
	}
	if o.monotonic {
		out["horizon_monotonic"] = 1
	}
	if n := len(o.radii); n > 0 {
		out["horizon_final"] = float64(o.radii[n-1])
	}
	return out
}
