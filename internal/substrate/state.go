// Package substrate holds the model universe at a given tick: entities,
// their adjacency graph, optional positions, and an optional gamma canvas.
//
// State is a plain data holder. It enforces only that graph nodes reference
// existing entities when entities are created or removed through Spawn and
// Remove; update rules are free to leave isolated nodes behind.
package substrate

import (
	"math"

	"github.com/nvandessel/tickframe/internal/field"
)

// EntityID identifies an entity for the lifetime of a run.
type EntityID int64

// Vec3 is a point or displacement in 3D space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Dist returns the Euclidean distance between v and o.
func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Norm() }

// Coord returns the nearest lattice coordinate.
func (v Vec3) Coord() field.Coord { return field.Round(v.X, v.Y, v.Z) }

// Entity is an ID with free-form numeric attributes and an optional position.
type Entity struct {
	ID       EntityID           `json:"id"`
	Attrs    map[string]float64 `json:"attrs,omitempty"`
	Position *Vec3              `json:"position,omitempty"`
	BornAt   int64              `json:"born_at"`
}

// State is the substrate at one tick.
type State struct {
	Tick     int64                `json:"tick"`
	Entities map[EntityID]*Entity `json:"-"`
	Graph    *Graph               `json:"-"`
	Canvas   *field.Canvas        `json:"-"`
	nextID   EntityID
}

// NewState returns an empty state at tick 0 with no canvas.
func NewState() *State {
	return &State{
		Entities: make(map[EntityID]*Entity),
		Graph:    NewGraph(),
	}
}

// Spawn creates a new entity with the next free ID and adds its graph node.
// pos may be nil.
func (s *State) Spawn(attrs map[string]float64, pos *Vec3) *Entity {
	id := s.nextID
	s.nextID++
	e := &Entity{ID: id, Attrs: attrs, BornAt: s.Tick}
	if pos != nil {
		p := *pos
		e.Position = &p
	}
	s.Entities[id] = e
	s.Graph.AddNode(id)
	return e
}

// Insert adds an entity with a caller-chosen ID, advancing the ID allocator
// past it. Used when restoring persisted states.
func (s *State) Insert(e *Entity) {
	s.Entities[e.ID] = e
	s.Graph.AddNode(e.ID)
	if e.ID >= s.nextID {
		s.nextID = e.ID + 1
	}
}

// NextID returns the ID the next Spawn will allocate.
func (s *State) NextID() EntityID {
	return s.nextID
}

// ReserveIDs makes Spawn allocate IDs at or above next.
func (s *State) ReserveIDs(next EntityID) {
	if next > s.nextID {
		s.nextID = next
	}
}

// Remove deletes the entity and its graph node.
func (s *State) Remove(id EntityID) {
	delete(s.Entities, id)
	s.Graph.RemoveNode(id)
}

// Entity returns the entity with the given ID, or nil.
func (s *State) Entity(id EntityID) *Entity {
	return s.Entities[id]
}

// Len returns the number of entities.
func (s *State) Len() int {
	return len(s.Entities)
}

// IDs returns all entity IDs in ascending order.
func (s *State) IDs() []EntityID {
	ids := make([]EntityID, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Origin returns the lowest entity ID, which builders place at the centre.
// ok is false when the state is empty.
func (s *State) Origin() (EntityID, bool) {
	ids := s.IDs()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	out := &State{
		Tick:     s.Tick,
		Entities: make(map[EntityID]*Entity, len(s.Entities)),
		Graph:    s.Graph.Clone(),
		nextID:   s.nextID,
	}
	for id, e := range s.Entities {
		cp := &Entity{ID: e.ID, BornAt: e.BornAt}
		if e.Attrs != nil {
			cp.Attrs = make(map[string]float64, len(e.Attrs))
			for k, v := range e.Attrs {
				cp.Attrs[k] = v
			}
		}
		if e.Position != nil {
			p := *e.Position
			cp.Position = &p
		}
		out.Entities[id] = cp
	}
	if s.Canvas != nil {
		out.Canvas = s.Canvas.Clone()
	}
	return out
}
