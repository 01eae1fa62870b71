// Package snapshot persists substrate states as a JSON header line followed
// by a checksummed gzip payload.
package snapshot

import (
	"fmt"
	"time"

	"github.com/nvandessel/tickframe/internal/field"
	"github.com/nvandessel/tickframe/internal/substrate"
)

// FinalFile is the name of a run's final snapshot inside its run directory.
const FinalFile = "final.snap"

// Payload is the serialized form of a substrate.State.
type Payload struct {
	Tick     int64              `json:"tick"`
	NextID   substrate.EntityID `json:"next_id"`
	Entities []substrate.Entity `json:"entities"`
	Edges    []substrate.Edge   `json:"edges"`
	Canvas   *CanvasPayload     `json:"canvas,omitempty"`
}

// CanvasPayload is the serialized form of a field.Canvas.
type CanvasPayload struct {
	Background float64      `json:"background"`
	Planar     bool         `json:"planar,omitempty"`
	Cells      []field.Cell `json:"cells"`
}

// Encode converts a state to its payload. Entities are in ID order.
func Encode(s *substrate.State) *Payload {
	p := &Payload{
		Tick:     s.Tick,
		NextID:   s.NextID(),
		Entities: make([]substrate.Entity, 0, s.Len()),
		Edges:    s.Graph.Edges(),
	}
	for _, id := range s.IDs() {
		p.Entities = append(p.Entities, *s.Entity(id))
	}
	if s.Canvas != nil {
		p.Canvas = &CanvasPayload{
			Background: s.Canvas.Background,
			Planar:     s.Canvas.Planar(),
			Cells:      s.Canvas.Cells(),
		}
	}
	return p
}

// Decode rebuilds a state from a payload. Edges must reference known entities.
func Decode(p *Payload) (*substrate.State, error) {
	s := substrate.NewState()
	s.Tick = p.Tick
	for i := range p.Entities {
		e := p.Entities[i]
		s.Insert(&e)
	}
	for _, e := range p.Edges {
		if s.Entity(e.A) == nil || s.Entity(e.B) == nil {
			return nil, fmt.Errorf("edge %d-%d references unknown entity", e.A, e.B)
		}
		if err := s.Graph.AddEdge(e.A, e.B); err != nil {
			return nil, fmt.Errorf("edge %d-%d: %w", e.A, e.B, err)
		}
	}
	s.ReserveIDs(p.NextID)
	if p.Canvas != nil {
		s.Canvas = field.FromCells(p.Canvas.Background, p.Canvas.Planar, p.Canvas.Cells)
	}
	return s, nil
}

// Write saves a deep copy of the state to path.
func Write(path string, s *substrate.State, metadata map[string]string) error {
	p := Encode(s.Clone())
	header := Header{
		CreatedAt: time.Now().UTC(),
		Tick:      p.Tick,
		Entities:  len(p.Entities),
		Edges:     len(p.Edges),
		Metadata:  metadata,
	}
	if p.Canvas != nil {
		header.Cells = len(p.Canvas.Cells)
	}
	if err := writeFile(path, header, p); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// Read loads a state from path after verifying its checksum.
func Read(path string) (*substrate.State, *Header, error) {
	var p Payload
	header, err := readPayload(path, &p)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	s, err := Decode(&p)
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return s, header, nil
}
