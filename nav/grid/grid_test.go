package grid_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gridpath/nav/grid"
)

type cell struct {
	x, y  int
	label string
}

func newCellGrid(t *testing.T, w, h int, size float64, origin grid.Vec2) *grid.Grid[*cell] {
	t.Helper()
	g, err := grid.New(w, h, size, origin, func(_ *grid.Grid[*cell], x, y int) *cell {
		return &cell{x: x, y: y}
	})
	require.NoError(t, err)
	return g
}

func TestNew_InvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		size     float64
		expected error
	}{
		{"zero width", 0, 3, 1, grid.ErrInvalidDimensions},
		{"negative height", 3, -1, 1, grid.ErrInvalidDimensions},
		{"zero cell size", 3, 3, 0, grid.ErrInvalidCellSize},
		{"negative cell size", 3, 3, -2, grid.ErrInvalidCellSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := grid.New[int](tt.w, tt.h, tt.size, grid.Vec2{}, nil)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, g)
		})
	}
}

func TestNew_FactoryCalledOncePerCell(t *testing.T) {
	calls := map[[2]int]int{}
	g, err := grid.New(4, 3, 1, grid.Vec2{}, func(_ *grid.Grid[int], x, y int) int {
		calls[[2]int{x, y}]++
		return x*10 + y
	})
	require.NoError(t, err)

	assert.Len(t, calls, 12)
	for k, n := range calls {
		assert.Equal(t, 1, n, "cell %v", k)
	}

	v, ok := g.Get(3, 2)
	require.True(t, ok)
	assert.Equal(t, 32, v)
	assert.Equal(t, 12, g.Len())
}

func TestGetSet_OutOfRange(t *testing.T) {
	g := newCellGrid(t, 3, 2, 1, grid.Vec2{})
	notified := 0
	g.Subscribe(func(x, y int) { notified++ })

	for _, c := range [][2]int{{-1, 0}, {0, -1}, {3, 0}, {0, 2}, {100, 100}} {
		v, ok := g.Get(c[0], c[1])
		assert.False(t, ok, "get %v", c)
		assert.Nil(t, v)

		g.Set(c[0], c[1], &cell{label: "x"})
		g.NotifyChanged(c[0], c[1])
	}
	assert.Zero(t, notified)

	g.Each(func(x, y int, c *cell) {
		assert.Empty(t, c.label)
	})
}

func TestSet_ReplacesAndNotifies(t *testing.T) {
	g := newCellGrid(t, 3, 3, 1, grid.Vec2{})
	var got [][2]int
	g.Subscribe(func(x, y int) { got = append(got, [2]int{x, y}) })

	g.Set(1, 2, &cell{label: "new"})

	v, ok := g.Get(1, 2)
	require.True(t, ok)
	assert.Equal(t, "new", v.label)
	assert.Equal(t, [][2]int{{1, 2}}, got)
}

func TestNotifyChanged_KeepsPayload(t *testing.T) {
	g := newCellGrid(t, 2, 2, 1, grid.Vec2{})
	before, _ := g.Get(1, 1)
	before.label = "mutated"

	var got [][2]int
	g.Subscribe(func(x, y int) { got = append(got, [2]int{x, y}) })
	g.NotifyChanged(1, 1)

	after, _ := g.Get(1, 1)
	assert.Same(t, before, after)
	assert.Equal(t, [][2]int{{1, 1}}, got)
}

func TestSubscribe_OrderAndUnsubscribe(t *testing.T) {
	g := newCellGrid(t, 2, 2, 1, grid.Vec2{})
	var order []string

	g.Subscribe(func(x, y int) { order = append(order, "a") })
	unsubB := g.Subscribe(func(x, y int) { order = append(order, "b") })
	g.Subscribe(func(x, y int) { order = append(order, "c") })

	g.NotifyChanged(0, 0)
	assert.Equal(t, []string{"a", "b", "c"}, order)

	order = nil
	unsubB()
	unsubB()
	g.NotifyChanged(0, 0)
	assert.Equal(t, []string{"a", "c"}, order)
	assert.Equal(t, 2, g.Subscribers())
}

func TestSubscribe_UnsubscribeDuringNotify(t *testing.T) {
	g := newCellGrid(t, 2, 2, 1, grid.Vec2{})
	calls := 0
	var unsub func()
	unsub = g.Subscribe(func(x, y int) {
		calls++
		unsub()
	})
	other := 0
	g.Subscribe(func(x, y int) { other++ })

	g.NotifyChanged(0, 0)
	g.NotifyChanged(0, 0)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, other)
}

func TestWorldToGrid(t *testing.T) {
	g := newCellGrid(t, 10, 10, 10, grid.Vec2{X: -5, Y: 20})

	tests := []struct {
		p    grid.Vec2
		x, y int
	}{
		{grid.Vec2{X: -5, Y: 20}, 0, 0},
		{grid.Vec2{X: 4.99, Y: 29.99}, 0, 0},
		{grid.Vec2{X: 5, Y: 30}, 1, 1},
		{grid.Vec2{X: -5.01, Y: 19.99}, -1, -1},
		{grid.Vec2{X: 200, Y: 20}, 20, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.p), func(t *testing.T) {
			x, y := g.WorldToGrid(tt.p)
			assert.Equal(t, tt.x, x)
			assert.Equal(t, tt.y, y)
		})
	}
}

func TestWorldToGrid_SnapsNearBoundary(t *testing.T) {
	g := newCellGrid(t, 10, 10, 0.1, grid.Vec2{})

	// 0.3/0.1 is 2.9999999999999996 in float64
	x, y := g.WorldToGrid(grid.Vec2{X: 0.3, Y: 0.7})
	assert.Equal(t, 3, x)
	assert.Equal(t, 7, y)

	unit := newCellGrid(t, 10, 10, 1, grid.Vec2{})
	x, _ = unit.WorldToGrid(grid.Vec2{X: 3 - 1e-12})
	assert.Equal(t, 3, x, "within tolerance snaps up")
	x, _ = unit.WorldToGrid(grid.Vec2{X: 3 - 1e-6})
	assert.Equal(t, 2, x, "outside tolerance floors")
}

func TestWorldToGrid_RoundTrip(t *testing.T) {
	configs := []struct {
		size   float64
		origin grid.Vec2
	}{
		{10, grid.Vec2{}},
		{1, grid.Vec2{X: 3, Y: -7}},
		{0.3, grid.Vec2{X: 0.1, Y: 0.7}},
		{2.5, grid.Vec2{X: -12.25, Y: 4.75}},
	}

	for _, c := range configs {
		g := newCellGrid(t, 13, 9, c.size, c.origin)
		g.Each(func(x, y int, _ *cell) {
			gx, gy := g.WorldToGrid(g.GridToWorld(x, y))
			assert.Equal(t, x, gx, "size=%v origin=%v", c.size, c.origin)
			assert.Equal(t, y, gy, "size=%v origin=%v", c.size, c.origin)
		})
	}
}

func TestGridToWorld(t *testing.T) {
	g := newCellGrid(t, 3, 3, 10, grid.Vec2{X: 1, Y: 2})

	assert.Equal(t, grid.Vec2{X: 1, Y: 2}, g.GridToWorld(0, 0))
	assert.Equal(t, grid.Vec2{X: 21, Y: 12}, g.GridToWorld(2, 1))
	assert.Equal(t, grid.Vec2{X: -9, Y: 2}, g.GridToWorld(-1, 0))
	assert.Equal(t, grid.Vec2{X: 26, Y: 17}, g.CellCenter(2, 1))
}

func TestGetAtSetAt(t *testing.T) {
	g := newCellGrid(t, 4, 4, 10, grid.Vec2{})

	c, ok := g.GetAt(grid.Vec2{X: 25, Y: 31})
	require.True(t, ok)
	assert.Equal(t, 2, c.x)
	assert.Equal(t, 3, c.y)

	g.SetAt(grid.Vec2{X: 5, Y: 5}, &cell{label: "world"})
	c, _ = g.Get(0, 0)
	assert.Equal(t, "world", c.label)

	_, ok = g.GetAt(grid.Vec2{X: -1, Y: 5})
	assert.False(t, ok)
}

func ExampleGrid_WorldToGrid() {
	g, _ := grid.New[bool](20, 10, 10, grid.Vec2{}, nil)
	x, y := g.WorldToGrid(grid.Vec2{X: 37, Y: 12})
	fmt.Println(x, y)
	// Output: 3 1
}
