// Package observer provides read-only tick hooks that compute metrics from
// the substrate and write them to sinks.
package observer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nvandessel/tickframe/internal/substrate"
)

// Observer is notified before and after every tick. Implementations must
// not mutate the state they are handed.
type Observer interface {
	Name() string
	BeforeTick(ctx context.Context, s *substrate.State) error
	AfterTick(ctx context.Context, s *substrate.State) error
}

// Summarizer is implemented by observers that contribute values to the
// experiment summary.
type Summarizer interface {
	Summary() map[string]float64
}

// Summaries merges the summaries of every observer that implements
// Summarizer. Later observers overwrite earlier keys.
func Summaries(observers []Observer) map[string]float64 {
	out := make(map[string]float64)
	for _, o := range observers {
		if sm, ok := o.(Summarizer); ok {
			for k, v := range sm.Summary() {
				out[k] = v
			}
		}
	}
	return out
}

// CloseAll closes every observer that implements io.Closer and returns the
// joined errors.
func CloseAll(observers []Observer) error {
	var errs []error
	for _, o := range observers {
		if c, ok := o.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close observer %s: %w", o.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
