package observer

import (
	"context"
	"time"

	"github.com/nvandessel/tickframe/internal/logging"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// EventObserver writes one JSONL event per tick. A nil EventLogger makes
// it a no-op.
type EventObserver struct {
	events  *logging.EventLogger
	started time.Time
}

// NewEventObserver wraps an event logger. The observer closes it.
func NewEventObserver(events *logging.EventLogger) *EventObserver {
	return &EventObserver{events: events}
}

func (o *EventObserver) Name() string { return "events" }

func (o *EventObserver) BeforeTick(_ context.Context, s *substrate.State) error {
	o.started = time.Now()
	return nil
}

func (o *EventObserver) AfterTick(_ context.Context, s *substrate.State) error {
	event := map[string]any{
		"event":      "tick",
		"tick":       s.Tick,
		"entities":   s.Len(),
		"edges":      s.Graph.EdgeCount(),
		"elapsed_us": time.Since(o.started).Microseconds(),
	}
	if s.Canvas != nil {
		event["cells"] = s.Canvas.Len()
	}
	o.events.Log(event)
	return nil
}

func (o *EventObserver) Close() error {
	return o.events.Close()
}
