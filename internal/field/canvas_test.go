package field

import (
	"errors"
	"math"
	"testing"
)

func TestCanvas_BackgroundNotStored(t *testing.T) {
	cv := New(0)
	cv.Set(Coord{1, 2, 3}, 0)
	if cv.Len() != 0 {
		t.Errorf("expected background value to be dropped, Len = %d", cv.Len())
	}

	cv.Set(Coord{1, 2, 3}, 0.5)
	if got := cv.Get(Coord{1, 2, 3}); got != 0.5 {
		t.Errorf("Get = %v, want 0.5", got)
	}
	cv.Add(Coord{1, 2, 3}, -0.5)
	if cv.Len() != 0 {
		t.Errorf("expected cell to be pruned after returning to background, Len = %d", cv.Len())
	}
}

func TestCanvas_NonZeroBackground(t *testing.T) {
	cv := New(1.0)
	if got := cv.Get(Coord{}); got != 1.0 {
		t.Errorf("Get on empty canvas = %v, want background 1.0", got)
	}
	cv.Add(Coord{}, 2)
	if got := cv.Sum(); got != 2 {
		t.Errorf("Sum = %v, want deviation 2", got)
	}
	if got := cv.Max(); got != 3 {
		t.Errorf("Max = %v, want 3", got)
	}
}

func TestCanvas_PaintIsSymmetric(t *testing.T) {
	cv := New(0)
	cv.Paint(Coord{}, 1.0, 2)

	if got := cv.Get(Coord{}); got != 1.0 {
		t.Errorf("centre = %v, want 1.0", got)
	}
	left := cv.Get(Coord{-1, 0, 0})
	right := cv.Get(Coord{1, 0, 0})
	if math.Abs(left-right) > 1e-12 {
		t.Errorf("asymmetric paint: left=%v right=%v", left, right)
	}
	if left >= 1.0 || left <= 0 {
		t.Errorf("neighbour value %v not in (0, 1)", left)
	}
	if cv.Len() != 125 {
		t.Errorf("Len = %d, want 125 cells for radius 2", cv.Len())
	}
}

func TestCanvas_PaintZeroRadius(t *testing.T) {
	cv := New(0)
	cv.Paint(Coord{4, 4, 4}, 2.5, 0)
	if cv.Len() != 1 || cv.Get(Coord{4, 4, 4}) != 2.5 {
		t.Errorf("zero radius paint should touch exactly the centre, got Len=%d", cv.Len())
	}
}

func TestCanvas_DecayPrunes(t *testing.T) {
	cv := New(0)
	cv.Set(Coord{}, 1.0)
	cv.Decay(0.5)
	if got := cv.Get(Coord{}); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("after one decay = %v, want 0.5", got)
	}
	for i := 0; i < 100; i++ {
		cv.Decay(0.5)
	}
	if cv.Len() != 0 {
		t.Errorf("expected decayed cell to be pruned, Len = %d", cv.Len())
	}
}

func TestCanvas_DiffuseConservesApproximately(t *testing.T) {
	cv := New(0)
	cv.Set(Coord{}, 6.0)
	before := cv.Sum()
	cv.Diffuse(0.5)

	if cv.Get(Coord{}) >= 6.0 {
		t.Errorf("centre did not relax: %v", cv.Get(Coord{}))
	}
	if cv.Get(Coord{1, 0, 0}) <= 0 {
		t.Errorf("neighbour did not receive mass: %v", cv.Get(Coord{1, 0, 0}))
	}
	after := cv.Sum()
	if math.Abs(after-before) > 1e-9 {
		t.Errorf("diffusion changed total: before=%v after=%v", before, after)
	}
}

func TestCanvas_Gradient(t *testing.T) {
	cv := New(0)
	cv.Set(Coord{1, 0, 0}, 2)
	cv.Set(Coord{-1, 0, 0}, 0)
	cv.Set(Coord{0, 1, 0}, -4)

	g := cv.Gradient(Coord{})
	if g[0] != 1 {
		t.Errorf("dx = %v, want 1", g[0])
	}
	if g[1] != -2 {
		t.Errorf("dy = %v, want -2", g[1])
	}
	if g[2] != 0 {
		t.Errorf("dz = %v, want 0", g[2])
	}
}

func TestCanvas_CloneIsIndependent(t *testing.T) {
	cv := New(0)
	cv.Set(Coord{}, 1)
	cp := cv.Clone()
	cp.Set(Coord{}, 5)
	if cv.Get(Coord{}) != 1 {
		t.Error("mutating clone changed original")
	}
}

func TestCanvas_CellsRoundTrip(t *testing.T) {
	cv := New(0.25)
	cv.Set(Coord{2, 0, 0}, 1)
	cv.Set(Coord{-1, 3, 0}, 2)

	rebuilt := FromCells(0.25, false, cv.Cells())
	if rebuilt.Len() != 2 {
		t.Fatalf("Len = %d, want 2", rebuilt.Len())
	}
	if rebuilt.Get(Coord{-1, 3, 0}) != 2 {
		t.Errorf("lost cell value")
	}
	coords := rebuilt.Coords()
	if coords[0] != (Coord{-1, 3, 0}) {
		t.Errorf("Coords not sorted: %v", coords)
	}
}

func TestCanvas_Dense(t *testing.T) {
	cv := New(0)
	cv.Set(Coord{1, 1, 0}, 3)

	min, max, ok := cv.Bounds()
	if !ok {
		t.Fatal("expected bounds for non-empty canvas")
	}
	vals, err := cv.Dense(Coord{0, 0, 0}, max)
	if err != nil {
		t.Fatalf("Dense: %v", err)
	}
	if len(vals) != 4 {
		t.Fatalf("len = %d, want 4", len(vals))
	}
	if vals[3] != 3 {
		t.Errorf("vals[3] = %v, want 3 (min=%v)", vals[3], min)
	}

	_, err = cv.Dense(Coord{-1000, -1000, -1000}, Coord{1000, 1000, 1000})
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestCanvas_PlanarStaysInPlane(t *testing.T) {
	cv := NewPlanar(0)
	cv.Paint(Coord{}, 1.0, 2)
	if cv.Len() != 25 {
		t.Errorf("Len = %d, want 25 cells for planar radius 2", cv.Len())
	}
	cv.Diffuse(0.5)
	for _, c := range cv.Coords() {
		if c.Z != 0 {
			t.Fatalf("planar canvas leaked to z=%d", c.Z)
		}
	}
	if !cv.Clone().Planar() {
		t.Error("clone lost planar flag")
	}
}

func TestCanvas_SumIndependentOfInsertionOrder(t *testing.T) {
	values := []float64{1e16, 1, -1e16, 0.1, 0.2, 0.3, 3.7e-3, 42}
	forward, backward := New(0), New(0)
	for i, v := range values {
		forward.Set(Coord{X: i}, v)
	}
	for i := len(values) - 1; i >= 0; i-- {
		backward.Set(Coord{X: i}, values[i])
	}

	want := forward.Sum()
	for i := 0; i < 20; i++ {
		if got := forward.Sum(); got != want {
			t.Fatalf("Sum changed between calls: %v vs %v", got, want)
		}
		if got := backward.Sum(); got != want {
			t.Fatalf("Sum depends on insertion order: %v vs %v", got, want)
		}
	}
}
