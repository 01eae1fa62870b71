package observer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/nvandessel/tickframe/internal/substrate"
)

// Recorder evaluates a list of probes after every Every-th tick and fans each
// row out to its sinks.
type Recorder struct {
	name   string
	every  int64
	names  []string
	probes []Probe
	sinks  []Sink

	headerDone bool
	rows       int
	lastTick   int64
	last       []float64
	min, max   []float64
}

// NewRecorder builds a recorder. every < 1 is treated as 1.
func NewRecorder(name string, every int, probeNames []string, sinks ...Sink) (*Recorder, error) {
	if len(probeNames) == 0 {
		return nil, fmt.Errorf("recorder %s: no probes", name)
	}
	if every < 1 {
		every = 1
	}
	r := &Recorder{
		name:  name,
		every: int64(every),
		names: append([]string(nil), probeNames...),
		sinks: sinks,
	}
	seen := make(map[string]bool, len(probeNames))
	for _, pn := range probeNames {
		if seen[pn] {
			return nil, fmt.Errorf("recorder %s: duplicate probe %q", name, pn)
		}
		seen[pn] = true
		p, err := LookupProbe(pn)
		if err != nil {
			return nil, fmt.Errorf("recorder %s: %w", name, err)
		}
		r.probes = append(r.probes, p)
	}
	r.min = make([]float64, len(r.probes))
	r.max = make([]float64, len(r.probes))
	return r, nil
}

// Name returns the recorder name.
func (r *Recorder) Name() string { return r.name }

// Columns returns the recorded probe names in row order.
func (r *Recorder) Columns() []string { return append([]string(nil), r.names...) }

// BeforeTick does nothing.
func (r *Recorder) BeforeTick(context.Context, *substrate.State) error { return nil }

// AfterTick records a row when s.Tick is a multiple of Every.
func (r *Recorder) AfterTick(ctx context.Context, s *substrate.State) error {
	if s.Tick%r.every != 0 {
		return nil
	}
	if !r.headerDone {
		for _, sink := range r.sinks {
			if err := sink.WriteHeader(r.Columns()); err != nil {
				return fmt.Errorf("recorder %s: %w", r.name, err)
			}
		}
		r.headerDone = true
	}

	vals := make([]float64, len(r.probes))
	for i, p := range r.probes {
		v, err := p(ctx, s)
		if err != nil {
			return fmt.Errorf("recorder %s: probe %s: %w", r.name, r.names[i], err)
		}
		vals[i] = v
	}
	for _, sink := range r.sinks {
		if err := sink.WriteRow(ctx, s.Tick, vals); err != nil {
			return fmt.Errorf("recorder %s: %w", r.name, err)
		}
	}

	for i, v := range vals {
		if r.rows == 0 {
			r.min[i], r.max[i] = v, v
			continue
		}
		r.min[i] = math.Min(r.min[i], v)
		r.max[i] = math.Max(r.max[i], v)
	}
	r.last = vals
	r.lastTick = s.Tick
	r.rows++
	return nil
}

// Summary reports the last row as "<probe>" and the extremes as
// "<probe>_min" and "<probe>_max".
func (r *Recorder) Summary() map[string]float64 {
	out := make(map[string]float64, 3*len(r.names))
	if r.rows == 0 {
		return out
	}
	for i, n := range r.names {
		out[n] = r.last[i]
		out[n+"_min"] = r.min[i]
		out[n+"_max"] = r.max[i]
	}
	return out
}

// Close closes every sink.
func (r *Recorder) Close() error {
	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
