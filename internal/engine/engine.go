// Package engine runs an update rule over a substrate state, tick by tick,
// notifying observers around each tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/tickframe/internal/logging"
	"github.com/nvandessel/tickframe/internal/observer"
	"github.com/nvandessel/tickframe/internal/rule"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// ErrInvalidTicks is returned by Run when maxTicks is not positive.
var ErrInvalidTicks = errors.New("max ticks must be positive")

// Engine holds the current state, the rule that advances it and the
// observers notified around every tick. It is single-threaded.
type Engine struct {
	state     *substrate.State
	rule      rule.UpdateRule
	observers []observer.Observer
	logger    *slog.Logger
	ticks     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-tick debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine starting from state.
func New(state *substrate.State, r rule.UpdateRule, observers []observer.Observer, opts ...Option) *Engine {
	e := &Engine{
		state:     state,
		rule:      r,
		observers: observers,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Engine) State() *substrate.State { return e.state }

// Ticks returns the number of ticks completed by Run.
func (e *Engine) Ticks() int { return e.ticks }

// Run advances the state exactly maxTicks times. Each tick notifies every
// observer's BeforeTick, applies the rule, then notifies AfterTick.
//
// The first error from the rule or an observer stops the run; it is
// returned wrapped with the tick number alongside the state reached so
// far. The context is checked between ticks.
func (e *Engine) Run(ctx context.Context, maxTicks int) (*substrate.State, error) {
	if maxTicks <= 0 {
		return e.state, fmt.Errorf("%w: got %d", ErrInvalidTicks, maxTicks)
	}
	if e.state == nil {
		return nil, fmt.Errorf("engine has no state")
	}

	for i := 0; i < maxTicks; i++ {
		tick := e.state.Tick
		if err := ctx.Err(); err != nil {
			return e.state, fmt.Errorf("interrupted at tick %d: %w", tick, err)
		}

		start := time.Now()
		for _, o := range e.observers {
			if err := o.BeforeTick(ctx, e.state); err != nil {
				return e.state, fmt.Errorf("observer %s before tick %d: %w", o.Name(), tick, err)
			}
		}

		stepped, err := rule.Step(e.rule, e.state)
		if err != nil {
			return e.state, fmt.Errorf("step: %w", err)
		}
		e.state = stepped
		e.ticks++

		for _, o := range e.observers {
			if err := o.AfterTick(ctx, e.state); err != nil {
				return e.state, fmt.Errorf("observer %s after tick %d: %w", o.Name(), tick, err)
			}
		}

		e.logger.Debug("tick",
			"tick", e.state.Tick,
			"entities", e.state.Len(),
			"edges", e.state.Graph.EdgeCount(),
			"elapsed", time.Since(start))
	}

	return e.state, nil
}
