// Package field implements the sparse gamma canvas: a scalar field over
// integer lattice coordinates that stores only cells which differ from the
// background value.
package field

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Epsilon is the tolerance below which a cell is considered equal to the
// background and dropped from the canvas.
const Epsilon = 1e-9

// MaxDenseCells bounds Dense exports.
const MaxDenseCells = 1 << 22

// ErrTooLarge is returned when a dense export would exceed MaxDenseCells.
var ErrTooLarge = errors.New("dense region too large")

// Coord is an integer lattice coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Neighbors6 returns the six face-adjacent coordinates.
func (c Coord) Neighbors6() [6]Coord {
	return [6]Coord{
		{c.X + 1, c.Y, c.Z}, {c.X - 1, c.Y, c.Z},
		{c.X, c.Y + 1, c.Z}, {c.X, c.Y - 1, c.Z},
		{c.X, c.Y, c.Z + 1}, {c.X, c.Y, c.Z - 1},
	}
}

// Round returns the lattice coordinate nearest to (x, y, z).
func Round(x, y, z float64) Coord {
	return Coord{int(math.Round(x)), int(math.Round(y)), int(math.Round(z))}
}

// Canvas is a sparse scalar field. The zero value is not usable; use New.
type Canvas struct {
	Background float64
	planar     bool
	cells      map[Coord]float64
}

// New creates an empty canvas with the given background value.
func New(background float64) *Canvas {
	return &Canvas{
		Background: background,
		cells:      make(map[Coord]float64),
	}
}

// NewPlanar creates a canvas confined to its z plane: Paint deposits a disc
// and Diffuse only exchanges with the four in-plane neighbours.
func NewPlanar(background float64) *Canvas {
	cv := New(background)
	cv.planar = true
	return cv
}

// Planar reports whether the canvas was created with NewPlanar.
func (cv *Canvas) Planar() bool {
	return cv.planar
}

func (cv *Canvas) neighbors(c Coord) []Coord {
	n := c.Neighbors6()
	if cv.planar {
		return n[:4]
	}
	return n[:]
}

// Get returns the value at c, or the background if the cell is not stored.
func (cv *Canvas) Get(c Coord) float64 {
	if v, ok := cv.cells[c]; ok {
		return v
	}
	return cv.Background
}

// Set stores v at c. Values within Epsilon of the background remove the cell.
func (cv *Canvas) Set(c Coord, v float64) {
	if math.Abs(v-cv.Background) <= Epsilon {
		delete(cv.cells, c)
		return
	}
	cv.cells[c] = v
}

// Add adds dv to the value at c.
func (cv *Canvas) Add(c Coord, dv float64) {
	cv.Set(c, cv.Get(c)+dv)
}

// Len returns the number of stored (non-background) cells.
func (cv *Canvas) Len() int {
	return len(cv.cells)
}

// Sum returns the total deviation from background over all stored cells,
// accumulated in Coords order so equal canvases give equal sums.
func (cv *Canvas) Sum() float64 {
	total := 0.0
	for _, c := range cv.Coords() {
		total += cv.cells[c] - cv.Background
	}
	return total
}

// Max returns the largest stored value, or the background if empty.
func (cv *Canvas) Max() float64 {
	if len(cv.cells) == 0 {
		return cv.Background
	}
	max := math.Inf(-1)
	for _, v := range cv.cells {
		if v > max {
			max = v
		}
	}
	return max
}

// Coords returns the stored coordinates in (X, Y, Z) order.
func (cv *Canvas) Coords() []Coord {
	coords := make([]Coord, 0, len(cv.cells))
	for c := range cv.cells {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		a, b := coords[i], coords[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return coords
}

// Clone returns a deep copy of the canvas.
func (cv *Canvas) Clone() *Canvas {
	out := &Canvas{
		Background: cv.Background,
		planar:     cv.planar,
		cells:      make(map[Coord]float64, len(cv.cells)),
	}
	for c, v := range cv.cells {
		out.cells[c] = v
	}
	return out
}

// Paint deposits a Gaussian blob of the given amplitude centred on center.
// Sigma is radius/2; cells outside the cube (or, for planar canvases, the
// square) of half-width radius are untouched.
func (cv *Canvas) Paint(center Coord, amplitude float64, radius int) {
	if radius <= 0 {
		cv.Add(center, amplitude)
		return
	}
	sigma := float64(radius) / 2
	twoSigma2 := 2 * sigma * sigma
	zr := radius
	if cv.planar {
		zr = 0
	}
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			for dz := -zr; dz <= zr; dz++ {
				d2 := float64(dx*dx + dy*dy + dz*dz)
				w := amplitude * math.Exp(-d2/twoSigma2)
				cv.Add(Coord{center.X + dx, center.Y + dy, center.Z + dz}, w)
			}
		}
	}
}

// Decay shrinks every stored deviation from background by (1 - rate).
// Cells that fall within Epsilon of the background are pruned.
func (cv *Canvas) Decay(rate float64) {
	if rate <= 0 {
		return
	}
	keep := 1 - rate
	for c, v := range cv.cells {
		cv.Set(c, cv.Background+(v-cv.Background)*keep)
	}
}

// Diffuse relaxes each stored cell and its neighbours toward the local mean.
// alpha in [0, 1] is the fraction moved per call.
func (cv *Canvas) Diffuse(alpha float64) {
	if alpha <= 0 || len(cv.cells) == 0 {
		return
	}
	touched := make(map[Coord]struct{}, len(cv.cells)*7)
	for c := range cv.cells {
		touched[c] = struct{}{}
		for _, n := range cv.neighbors(c) {
			touched[n] = struct{}{}
		}
	}
	next := make(map[Coord]float64, len(touched))
	for c := range touched {
		nbrs := cv.neighbors(c)
		mean := 0.0
		for _, n := range nbrs {
			mean += cv.Get(n)
		}
		mean /= float64(len(nbrs))
		v := cv.Get(c)
		next[c] = v + alpha*(mean-v)
	}
	for c, v := range next {
		cv.Set(c, v)
	}
}

// Gradient returns the central-difference gradient at c.
func (cv *Canvas) Gradient(c Coord) [3]float64 {
	return [3]float64{
		(cv.Get(Coord{c.X + 1, c.Y, c.Z}) - cv.Get(Coord{c.X - 1, c.Y, c.Z})) / 2,
		(cv.Get(Coord{c.X, c.Y + 1, c.Z}) - cv.Get(Coord{c.X, c.Y - 1, c.Z})) / 2,
		(cv.Get(Coord{c.X, c.Y, c.Z + 1}) - cv.Get(Coord{c.X, c.Y, c.Z - 1})) / 2,
	}
}

// Bounds returns the inclusive bounding box of stored cells. ok is false
// when the canvas is empty.
func (cv *Canvas) Bounds() (min, max Coord, ok bool) {
	first := true
	for c := range cv.cells {
		if first {
			min, max, first = c, c, false
			continue
		}
		min = Coord{minInt(min.X, c.X), minInt(min.Y, c.Y), minInt(min.Z, c.Z)}
		max = Coord{maxInt(max.X, c.X), maxInt(max.Y, c.Y), maxInt(max.Z, c.Z)}
	}
	return min, max, !first
}

// Dense returns the values of the inclusive box [min, max] in X-major order.
func (cv *Canvas) Dense(min, max Coord) ([]float64, error) {
	nx, ny, nz := max.X-min.X+1, max.Y-min.Y+1, max.Z-min.Z+1
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("dense export: empty box %v..%v", min, max)
	}
	size := int64(nx) * int64(ny) * int64(nz)
	if size > MaxDenseCells {
		return nil, fmt.Errorf("dense export of %d cells: %w", size, ErrTooLarge)
	}
	out := make([]float64, 0, size)
	for x := min.X; x <= max.X; x++ {
		for y := min.Y; y <= max.Y; y++ {
			for z := min.Z; z <= max.Z; z++ {
				out = append(out, cv.Get(Coord{x, y, z}))
			}
		}
	}
	return out, nil
}

// Cell is a stored canvas entry, used for serialization.
type Cell struct {
	Coord
	Value float64 `json:"v"`
}

// Cells returns the stored entries in Coords order.
func (cv *Canvas) Cells() []Cell {
	coords := cv.Coords()
	out := make([]Cell, len(coords))
	for i, c := range coords {
		out[i] = Cell{Coord: c, Value: cv.cells[c]}
	}
	return out
}

// FromCells rebuilds a canvas from serialized entries.
func FromCells(background float64, planar bool, cells []Cell) *Canvas {
	cv := New(background)
	cv.planar = planar
	for _, c := range cells {
		cv.Set(c.Coord, c.Value)
	}
	return cv
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
