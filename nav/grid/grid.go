package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidDimensions is returned when width or height is not positive.
	ErrInvalidDimensions = errors.New("grid: width and height must be positive")
	// ErrInvalidCellSize is returned when the cell size is not a positive number.
	ErrInvalidCellSize = errors.New("grid: cell size must be positive")
)

// snapEpsilon absorbs float rounding when a world position lies on a cell boundary.
const snapEpsilon = 1e-9

// Vec2 is a position in world space
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns v + o
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Scale returns v * s
func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

// Factory builds the payload for cell (x, y). It is called exactly once per cell.
type Factory[T any] func(g *Grid[T], x, y int) T

// ChangeFunc receives the coordinates of a mutated cell.
type ChangeFunc func(x, y int)

type subscriber struct {
	id int
	fn ChangeFunc
}

// Grid is a dense width x height container of T payloads.
type Grid[T any] struct {
	width    int
	height   int
	cellSize float64
	origin   Vec2
	cells    []T // row-major: y*width + x

	subscribers []subscriber
	nextSubID   int
}

// New creates a grid and populates every cell through factory.
func New[T any](width, height int, cellSize float64, origin Vec2, factory Factory[T]) (*Grid[T], error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, height)
	}
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidCellSize, cellSize)
	}

	g := &Grid[T]{
		width:    width,
		height:   height,
		cellSize: cellSize,
		origin:   origin,
		cells:    make([]T, width*height),
	}

	if factory != nil {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.cells[g.index(x, y)] = factory(g, x, y)
			}
		}
	}

	return g, nil
}

// Width returns the number of columns
func (g *Grid[T]) Width() int { return g.width }

// Height returns the number of rows
func (g *Grid[T]) Height() int { return g.height }

// CellSize returns the world-space edge length of one cell
func (g *Grid[T]) CellSize() float64 { return g.cellSize }

// Origin returns the world position of cell (0, 0)
func (g *Grid[T]) Origin() Vec2 { return g.origin }

// Len returns the number of cells
func (g *Grid[T]) Len() int { return len(g.cells) }

// InBounds reports whether (x, y) addresses a cell
func (g *Grid[T]) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.width && y < g.height
}

func (g *Grid[T]) index(x, y int) int {
	return y*g.width + x
}

// Get returns the payload at (x, y). The boolean is false for out-of-range coordinates.
func (g *Grid[T]) Get(x, y int) (T, bool) {
	if !g.InBounds(x, y) {
		var zero T
		return zero, false
	}
	return g.cells[g.index(x, y)], true
}

// Set replaces the payload at (x, y) and notifies subscribers.
// Out-of-range coordinates are ignored.
func (g *Grid[T]) Set(x, y int, value T) {
	if !g.InBounds(x, y) {
		return
	}
	g.cells[g.index(x, y)] = value
	g.notify(x, y)
}

// GetAt returns the payload of the cell containing world position p.
func (g *Grid[T]) GetAt(p Vec2) (T, bool) {
	x, y := g.WorldToGrid(p)
	return g.Get(x, y)
}

// SetAt replaces the payload of the cell containing world position p.
func (g *Grid[T]) SetAt(p Vec2, value T) {
	x, y := g.WorldToGrid(p)
	g.Set(x, y, value)
}

// NotifyChanged raises a change notification for (x, y) without replacing the
// payload. Used when the payload was mutated through a reference it holds.
func (g *Grid[T]) NotifyChanged(x, y int) {
	if !g.InBounds(x, y) {
		return
	}
	g.notify(x, y)
}

// Subscribe registers fn for change notifications. The returned function
// removes the subscription; calling it more than once is harmless.
func (g *Grid[T]) Subscribe(fn ChangeFunc) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	g.nextSubID++
	id := g.nextSubID
	g.subscribers = append(g.subscribers, subscriber{id: id, fn: fn})

	return func() {
		for i, s := range g.subscribers {
			if s.id == id {
				g.subscribers = append(g.subscribers[:i:i], g.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of registered change handlers
func (g *Grid[T]) Subscribers() int { return len(g.subscribers) }

func (g *Grid[T]) notify(x, y int) {
	if len(g.subscribers) == 0 {
		return
	}
	// Snapshot so handlers may unsubscribe while being notified.
	subs := make([]subscriber, len(g.subscribers))
	copy(subs, g.subscribers)
	for _, s := range subs {
		s.fn(x, y)
	}
}

// Each calls fn for every cell in row-major order
func (g *Grid[T]) Each(fn func(x, y int, value T)) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			fn(x, y, g.cells[g.index(x, y)])
		}
	}
}

// WorldToGrid returns the indices of the cell containing p. The result may be out of range.
// A coordinate within 1e-9 cells of a boundary is treated as lying on it, so a point
// a hair below a boundary maps to the cell above it rather than to plain floor.
func (g *Grid[T]) WorldToGrid(p Vec2) (x, y int) {
	return g.axisToGrid(p.X, g.origin.X), g.axisToGrid(p.Y, g.origin.Y)
}

func (g *Grid[T]) axisToGrid(v, origin float64) int {
	f := (v - origin) / g.cellSize
	if r := math.Round(f); math.Abs(f-r) < snapEpsilon {
		f = r
	}
	return int(math.Floor(f))
}

// GridToWorld returns the world position of the lower corner of cell (x, y). No bounds check.
func (g *Grid[T]) GridToWorld(x, y int) Vec2 {
	return g.origin.Add(Vec2{X: float64(x), Y: float64(y)}.Scale(g.cellSize))
}

// CellCenter returns the world position of the middle of cell (x, y)
func (g *Grid[T]) CellCenter(x, y int) Vec2 {
	half := g.cellSize / 2
	return g.GridToWorld(x, y).Add(Vec2{X: half, Y: half})
}
