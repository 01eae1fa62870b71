package observer

import (
	"context"
	"fmt"

	"github.com/nvandessel/tickframe/internal/ranking"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// CentralityObserver runs PageRank over the graph every Every ticks and
// keeps the strongest hub.
type CentralityObserver struct {
	every  int64
	config ranking.PageRankConfig

	computed bool
	hub      substrate.EntityID
	score    float64
	peak     float64
}

// NewCentralityObserver returns an observer using the default PageRank settings.
func NewCentralityObserver(every int) *CentralityObserver {
	if every < 1 {
		every = 1
	}
	return &CentralityObserver{every: int64(every), config: ranking.DefaultPageRankConfig()}
}

func (o *CentralityObserver) Name() string { return "centrality" }

func (o *CentralityObserver) BeforeTick(context.Context, *substrate.State) error { return nil }

func (o *CentralityObserver) AfterTick(ctx context.Context, s *substrate.State) error {
	if s.Tick%o.every != 0 {
		return nil
	}
	scores, err := ranking.ComputePageRank(ctx, s.Graph, o.config)
	if err != nil {
		return fmt.Errorf("centrality at tick %d: %w", s.Tick, err)
	}
	hub, rel, ok := ranking.Top(scores)
	if !ok {
		return nil
	}
	o.computed = true
	o.hub, o.score = hub, rel
	if rel > o.peak {
		o.peak = rel
	}
	return nil
}

// Hub returns the latest top-ranked entity and its relative score.
func (o *CentralityObserver) Hub() (substrate.EntityID, float64, bool) {
	return o.hub, o.score, o.computed
}

func (o *CentralityObserver) Summary() map[string]float64 {
	if !o.computed {
		return map[string]float64{}
	}
	return map[string]float64{
		"hub_id":         float64(o.hub),
		"hub_score_last": o.score,
		"hub_score_peak": o.peak,
	}
}
