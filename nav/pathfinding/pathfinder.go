package pathfinding

import (
	"github.com/wricardo/gridpath/nav/grid"
)

// Pathfinder runs A* searches over a grid of PathNodes it owns
type Pathfinder struct {
	grid          *grid.Grid[*PathNode]
	corners       CornerPolicy
	maxExpansions int
}

// New creates a width x height Pathfinder with every node walkable.
func New(width, height int, opts ...Option) (*Pathfinder, error) {
	s := settings{cellSize: DefaultCellSize}
	for _, opt := range opts {
		opt(&s)
	}

	g, err := grid.New(width, height, s.cellSize, s.origin, newPathNode)
	if err != nil {
		return nil, err
	}

	return &Pathfinder{
		grid:          g,
		corners:       s.corners,
		maxExpansions: s.maxExpansions,
	}, nil
}

// Grid returns the underlying grid. Observers may subscribe to it; callers
// must not modify node search state.
func (p *Pathfinder) Grid() *grid.Grid[*PathNode] {
	return p.grid
}

// Width returns the number of columns
func (p *Pathfinder) Width() int { return p.grid.Width() }

// Height returns the number of rows
func (p *Pathfinder) Height() int { return p.grid.Height() }

// CornerPolicy returns the default corner-cutting rule
func (p *Pathfinder) CornerPolicy() CornerPolicy { return p.corners }

// SetCornerPolicy changes the default corner-cutting rule
func (p *Pathfinder) SetCornerPolicy(policy CornerPolicy) { p.corners = policy }

// MaxExpansions returns the default expansion limit, zero meaning unlimited
func (p *Pathfinder) MaxExpansions() int { return p.maxExpansions }

// Node returns the node at (x, y)
func (p *Pathfinder) Node(x, y int) (*PathNode, bool) {
	return p.grid.Get(x, y)
}

// IsWalkable reports whether (x, y) is in range and walkable
func (p *Pathfinder) IsWalkable(x, y int) bool {
	n, ok := p.grid.Get(x, y)
	return ok && n.Walkable
}

// SetWalkable sets the walkability of (x, y) and notifies grid subscribers.
// Out-of-range coordinates are ignored. Returns whether a node was updated.
func (p *Pathfinder) SetWalkable(x, y int, walkable bool) bool {
	n, ok := p.grid.Get(x, y)
	if !ok {
		return false
	}
	n.SetWalkable(walkable)
	return true
}

// ToggleWalkable flips the walkability of (x, y) and returns the new value.
func (p *Pathfinder) ToggleWalkable(x, y int) (walkable bool, ok bool) {
	n, ok := p.grid.Get(x, y)
	if !ok {
		return false, false
	}
	n.SetWalkable(!n.Walkable)
	return n.Walkable, true
}

// Blocked returns the coordinates of every unwalkable node in row-major order
func (p *Pathfinder) Blocked() []Point {
	var out []Point
	p.grid.Each(func(x, y int, n *PathNode) {
		if !n.Walkable {
			out = append(out, Point{X: x, Y: y})
		}
	})
	return out
}

// FindPath returns the cells of a shortest path from start to end, both included.
// It returns ErrNoPath when an endpoint is out of range or the end is unreachable.
func (p *Pathfinder) FindPath(startX, startY, endX, endY int, opts ...SearchOption) (Path, error) {
	res, err := p.Search(Point{X: startX, Y: startY}, Point{X: endX, Y: endY}, opts...)
	if err != nil {
		return nil, err
	}
	return res.Path, nil
}

// Neighbors returns the in-bounds 8-neighborhood of (x, y) in search order.
func (p *Pathfinder) Neighbors(x, y int) []Point {
	n, ok := p.grid.Get(x, y)
	if !ok {
		return nil
	}
	nodes := p.neighbors(n, make([]*PathNode, 0, 8))
	out := make([]Point, len(nodes))
	for i, nb := range nodes {
		out[i] = nb.Point()
	}
	return out
}

// CanStep reports whether a search may move from one cell to an adjacent
// walkable cell under the default corner policy.
func (p *Pathfinder) CanStep(from, to Point) bool {
	a, ok := p.grid.Get(from.X, from.Y)
	if !ok {
		return false
	}
	b, ok := p.grid.Get(to.X, to.Y)
	if !ok || !b.Walkable || a == b {
		return false
	}
	if abs(a.X-b.X) > 1 || abs(a.Y-b.Y) > 1 {
		return false
	}
	return p.corners.allows(p.grid, a, b)
}

// neighbors appends the in-bounds 8-neighborhood of n to buf in search order
func (p *Pathfinder) neighbors(n *PathNode, buf []*PathNode) []*PathNode {
	buf = buf[:0]
	w, h := p.grid.Width(), p.grid.Height()
	add := func(x, y int) {
		nb, _ := p.grid.Get(x, y)
		buf = append(buf, nb)
	}

	if n.X-1 >= 0 {
		add(n.X-1, n.Y)
		if n.Y-1 >= 0 {
			add(n.X-1, n.Y-1)
		}
		if n.Y+1 < h {
			add(n.X-1, n.Y+1)
		}
	}
	if n.X+1 < w {
		add(n.X+1, n.Y)
		if n.Y-1 >= 0 {
			add(n.X+1, n.Y-1)
		}
		if n.Y+1 < h {
			add(n.X+1, n.Y+1)
		}
	}
	if n.Y-1 >= 0 {
		add(n.X, n.Y-1)
	}
	if n.Y+1 < h {
		add(n.X, n.Y+1)
	}
	return buf
}

func (p *Pathfinder) reset() {
	p.grid.Each(func(_, _ int, n *PathNode) {
		n.reset()
	})
}
