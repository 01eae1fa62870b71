package observer

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// ArrowSink buffers rows in memory and writes them as a single record batch
// to an Arrow IPC file on Close. Column 0 is an int64 "tick"; the rest are
// float64.
type ArrowSink struct {
	path   string
	mem    memory.Allocator
	cols   []string
	ticks  []int64
	values [][]float64 // per column
}

// NewArrowSink returns a sink that writes to path on Close.
func NewArrowSink(path string) *ArrowSink {
	return &ArrowSink{path: path, mem: memory.NewGoAllocator()}
}

// WriteHeader fixes the column set.
func (a *ArrowSink) WriteHeader(cols []string) error {
	if a.cols != nil {
		return nil
	}
	a.cols = append([]string(nil), cols...)
	a.values = make([][]float64, len(cols))
	return nil
}

// WriteRow buffers a row.
func (a *ArrowSink) WriteRow(_ context.Context, tick int64, vals []float64) error {
	if len(vals) != len(a.cols) {
		return fmt.Errorf("arrow row at tick %d: %d values for %d columns", tick, len(vals), len(a.cols))
	}
	a.ticks = append(a.ticks, tick)
	for i, v := range vals {
		a.values[i] = append(a.values[i], v)
	}
	return nil
}

func (a *ArrowSink) schema() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(a.cols)+1)
	fields = append(fields, arrow.Field{Name: "tick", Type: arrow.PrimitiveTypes.Int64})
	for _, c := range a.cols {
		fields = append(fields, arrow.Field{Name: c, Type: arrow.PrimitiveTypes.Float64})
	}
	return arrow.NewSchema(fields, nil)
}

// Close writes the buffered rows. A sink that never saw a header writes
// nothing.
func (a *ArrowSink) Close() error {
	if a.cols == nil {
		return nil
	}

	schema := a.schema()
	b := array.NewRecordBuilder(a.mem, schema)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues(a.ticks, nil)
	for i := range a.cols {
		b.Field(i+1).(*array.Float64Builder).AppendValues(a.values[i], nil)
	}
	rec := b.NewRecord()
	defer rec.Release()

	f, err := createFile(a.path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(a.mem))
	if err != nil {
		return fmt.Errorf("arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("arrow write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("arrow close: %w", err)
	}
	return f.Close()
}

// Table is a metrics file read back into memory.
type Table struct {
	Columns []string    // value columns, without "tick"
	Ticks   []int64
	Values  [][]float64 // per column
}

// Column returns the values for name, or nil.
func (t *Table) Column(name string) []float64 {
	for i, c := range t.Columns {
		if c == name {
			return t.Values[i]
		}
	}
	return nil
}

// ReadArrow reads a metrics file written by ArrowSink.
func ReadArrow(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	mem := memory.NewGoAllocator()
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("arrow reader: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	if schema.NumFields() == 0 || schema.Field(0).Name != "tick" {
		return nil, fmt.Errorf("%s: first column must be tick", path)
	}
	t := &Table{}
	for _, fld := range schema.Fields()[1:] {
		t.Columns = append(t.Columns, fld.Name)
	}
	t.Values = make([][]float64, len(t.Columns))

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("arrow record %d: %w", i, err)
		}
		ticks, ok := rec.Column(0).(*array.Int64)
		if !ok {
			return nil, fmt.Errorf("%s: tick column is %s", path, rec.Column(0).DataType())
		}
		t.Ticks = append(t.Ticks, ticks.Int64Values()...)
		for c := range t.Columns {
			col, ok := rec.Column(c + 1).(*array.Float64)
			if !ok {
				return nil, fmt.Errorf("%s: column %s is %s", path, t.Columns[c], rec.Column(c+1).DataType())
			}
			t.Values[c] = append(t.Values[c], col.Float64Values()...)
		}
	}
	return t, nil
}
