package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/tickframe/internal/field"
	"github.com/nvandessel/tickframe/internal/substrate"
)

func sampleState(t *testing.T) *substrate.State {
	t.Helper()
	s := substrate.NewState()
	s.Tick = 17
	a := s.Spawn(map[string]float64{"mass": 2}, &substrate.Vec3{X: 0, Y: 0})
	b := s.Spawn(nil, &substrate.Vec3{X: 1, Y: 0})
	c := s.Spawn(nil, nil)
	if err := s.Graph.AddEdge(a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Graph.AddEdge(b.ID, c.ID); err != nil {
		t.Fatal(err)
	}
	// A removed entity leaves a gap the allocator must not reuse.
	d := s.Spawn(nil, nil)
	s.Remove(d.ID)

	s.Canvas = field.NewPlanar(0)
	s.Canvas.Paint(field.Coord{}, 1, 1)
	return s
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "final.snap")
	orig := sampleState(t)

	if err := Write(path, orig, map[string]string{"run": "abc"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, header, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if header.Tick != 17 || header.Entities != 3 || header.Edges != 2 {
		t.Errorf("header = %+v", header)
	}
	if header.Metadata["run"] != "abc" {
		t.Errorf("metadata lost: %v", header.Metadata)
	}
	if header.Cells != orig.Canvas.Len() {
		t.Errorf("header cells = %d, want %d", header.Cells, orig.Canvas.Len())
	}

	if got.Tick != orig.Tick || got.Len() != orig.Len() {
		t.Fatalf("tick/len mismatch: %d/%d vs %d/%d", got.Tick, got.Len(), orig.Tick, orig.Len())
	}
	if got.Graph.EdgeCount() != 2 || !got.Graph.HasEdge(0, 1) || !got.Graph.HasEdge(1, 2) {
		t.Errorf("edges not restored: %v", got.Graph.Edges())
	}
	if got.Entity(0).Attrs["mass"] != 2 {
		t.Errorf("attrs not restored: %+v", got.Entity(0))
	}
	if got.Entity(2).Position != nil {
		t.Error("nil position should stay nil")
	}
	if p := got.Entity(1).Position; p == nil || p.X != 1 {
		t.Errorf("position not restored: %+v", p)
	}
	if got.NextID() != orig.NextID() {
		t.Errorf("NextID = %d, want %d", got.NextID(), orig.NextID())
	}
	if got.Canvas == nil || !got.Canvas.Planar() {
		t.Fatal("planar canvas not restored")
	}
	if got.Canvas.Get(field.Coord{}) != orig.Canvas.Get(field.Coord{}) {
		t.Errorf("canvas value mismatch")
	}
}

func TestWrite_NoCanvas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.snap")
	s := substrate.NewState()
	s.Spawn(nil, nil)
	if err := Write(path, s, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, header, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Canvas != nil {
		t.Error("expected nil canvas")
	}
	if header.Cells != 0 {
		t.Errorf("cells = %d, want 0", header.Cells)
	}
}

func TestVerify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.snap")
	if err := Write(path, sampleState(t), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Verify(path); err != nil {
		t.Fatalf("Verify on intact file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if err := Verify(path); err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("expected checksum mismatch, got %v", err)
	}
	if _, _, err := Read(path); err == nil {
		t.Error("Read should fail on corrupted payload")
	}
}

func TestReadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.snap")
	if err := Write(path, sampleState(t), nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	header, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if header.Version != FormatVersion {
		t.Errorf("Version = %d", header.Version)
	}
	if !strings.HasPrefix(header.Checksum, "sha256:") {
		t.Errorf("Checksum = %q", header.Checksum)
	}
}

func TestReadHeader_BadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.snap")
	if err := os.WriteFile(path, []byte(`{"version":9}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHeader(path); err == nil {
		t.Error("expected error for unsupported version")
	}
}

func TestDecode_DanglingEdge(t *testing.T) {
	p := &Payload{
		Entities: []substrate.Entity{{ID: 0}},
		Edges:    []substrate.Edge{{A: 0, B: 5}},
	}
	if _, err := Decode(p); err == nil {
		t.Error("expected error for edge to unknown entity")
	}
}
