package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryRunStore implements RunStore for testing and dry runs.
type InMemoryRunStore struct {
	mu      sync.RWMutex
	runs    map[string]Run
	metrics map[string]map[string][]Point // runID -> name -> points
}

// NewInMemoryRunStore creates a new in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs:    make(map[string]Run),
		metrics: make(map[string]map[string][]Point),
	}
}

// CreateRun records a new run.
func (s *InMemoryRunStore) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	s.runs[run.ID] = run
	return nil
}

// FinishRun sets the final status and summary of a run.
func (s *InMemoryRunStore) FinishRun(ctx context.Context, id string, status Status, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	now := time.Now().UTC()
	run.Status = status
	run.Summary = summary
	run.FinishedAt = &now
	s.runs[id] = run
	return nil
}

// GetRun retrieves a run by ID.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	return &run, nil
}

// ListRuns returns runs ordered by start time, newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// AppendMetrics records one sample per named value at tick.
func (s *InMemoryRunStore) AppendMetrics(ctx context.Context, runID string, tick int64, values map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("append metrics for %s: %w", runID, ErrRunNotFound)
	}
	series, ok := s.metrics[runID]
	if !ok {
		series = make(map[string][]Point)
		s.metrics[runID] = series
	}
	for name, v := range values {
		series[name] = append(series[name], Point{Tick: tick, Value: v})
	}
	return nil
}

// Metrics returns the series for one metric ordered by tick.
func (s *InMemoryRunStore) Metrics(ctx context.Context, runID, name string) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("metrics for %s: %w", runID, ErrRunNotFound)
	}
	points := append([]Point(nil), s.metrics[runID][name]...)
	sort.SliceStable(points, func(i, j int) bool { return points[i].Tick < points[j].Tick })
	return points, nil
}

// MetricNames returns the recorded metric names for a run.
func (s *InMemoryRunStore) MetricNames(ctx context.Context, runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("metric names for %s: %w", runID, ErrRunNotFound)
	}
	names := make([]string, 0, len(s.metrics[runID]))
	for name := range s.metrics[runID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryRunStore) Close() error {
	return nil
}
