package observer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Sink receives recorded rows. Every row starts with the tick; cols names
// the values that follow it.
type Sink interface {
	WriteHeader(cols []string) error
	WriteRow(ctx context.Context, tick int64, vals []float64) error
	Close() error
}

// MetricsAppender is the part of the run store a StoreSink needs.
type MetricsAppender interface {
	AppendMetrics(ctx context.Context, runID string, tick int64, values map[string]float64) error
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, nil
}

// CSVSink writes one CSV row per recorded tick. Rows are flushed as they
// are written so a crashed run keeps what it logged.
type CSVSink struct {
	f      *os.File
	w      *csv.Writer
	header bool
}

// NewCSVSink creates (truncating) the CSV file at path.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &CSVSink{f: f, w: csv.NewWriter(f)}, nil
}

// WriteHeader writes the header row once; later calls are ignored.
func (c *CSVSink) WriteHeader(cols []string) error {
	if c.header {
		return nil
	}
	c.header = true
	if err := c.w.Write(append([]string{"tick"}, cols...)); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	c.w.Flush()
	return c.w.Error()
}

// WriteRow appends a row.
func (c *CSVSink) WriteRow(_ context.Context, tick int64, vals []float64) error {
	record := make([]string, 0, len(vals)+1)
	record = append(record, strconv.FormatInt(tick, 10))
	for _, v := range vals {
		record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
	}
	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("csv row at tick %d: %w", tick, err)
	}
	c.w.Flush()
	return c.w.Error()
}

// Close flushes and closes the file.
func (c *CSVSink) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

// JSONLSink writes one JSON object per recorded tick.
type JSONLSink struct {
	f    *os.File
	enc  *json.Encoder
	cols []string
}

// NewJSONLSink creates (truncating) the JSONL file at path.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{f: f, enc: json.NewEncoder(f)}, nil
}

// WriteHeader records the column names used as object keys.
func (j *JSONLSink) WriteHeader(cols []string) error {
	j.cols = append([]string(nil), cols...)
	return nil
}

// WriteRow writes {"tick": t, col: v, ...}. NaN and Inf become null.
func (j *JSONLSink) WriteRow(_ context.Context, tick int64, vals []float64) error {
	if len(vals) != len(j.cols) {
		return fmt.Errorf("jsonl row at tick %d: %d values for %d columns", tick, len(vals), len(j.cols))
	}
	row := make(map[string]any, len(vals)+1)
	row["tick"] = tick
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			row[j.cols[i]] = nil
			continue
		}
		row[j.cols[i]] = v
	}
	if err := j.enc.Encode(row); err != nil {
		return fmt.Errorf("jsonl row at tick %d: %w", tick, err)
	}
	return nil
}

// Close closes the file.
func (j *JSONLSink) Close() error {
	return j.f.Close()
}

// StoreSink persists rows through a MetricsAppender, keyed by run ID.
type StoreSink struct {
	store MetricsAppender
	runID string
	cols  []string
}

// NewStoreSink returns a sink that appends rows for runID.
func NewStoreSink(store MetricsAppender, runID string) *StoreSink {
	return &StoreSink{store: store, runID: runID}
}

// WriteHeader records the metric names.
func (s *StoreSink) WriteHeader(cols []string) error {
	s.cols = append([]string(nil), cols...)
	return nil
}

// WriteRow appends one sample per column.
func (s *StoreSink) WriteRow(ctx context.Context, tick int64, vals []float64) error {
	if len(vals) != len(s.cols) {
		return fmt.Errorf("store row at tick %d: %d values for %d columns", tick, len(vals), len(s.cols))
	}
	values := make(map[string]float64, len(vals))
	for i, v := range vals {
		values[s.cols[i]] = v
	}
	return s.store.AppendMetrics(ctx, s.runID, tick, values)
}

// Close is a no-op; the store outlives the sink.
func (s *StoreSink) Close() error {
	return nil
}
