package pathfinding

import (
	"fmt"

	"github.com/wricardo/gridpath/nav/grid"
)

// Point is a cell coordinate
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// String formats the point as "x,y"
func (p Point) String() string {
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

// PathNode is the payload of every cell in a Pathfinder's grid
type PathNode struct {
	X        int
	Y        int
	Walkable bool

	// Search scratch, reset at the start of every search.
	GCost    int
	HCost    int
	FCost    int
	CameFrom *PathNode

	grid *grid.Grid[*PathNode]
}

func newPathNode(g *grid.Grid[*PathNode], x, y int) *PathNode {
	n := &PathNode{
		X:        x,
		Y:        y,
		Walkable: true,
		grid:     g,
	}
	n.reset()
	return n
}

// CalculateFCost recomputes FCost from GCost and HCost. Must be called after either changes.
func (n *PathNode) CalculateFCost() {
	n.FCost = addCost(n.GCost, n.HCost)
}

// SetWalkable updates the walkability flag and notifies the owning grid
func (n *PathNode) SetWalkable(walkable bool) {
	n.Walkable = walkable
	if n.grid != nil {
		n.grid.NotifyChanged(n.X, n.Y)
	}
}

// Point returns the node's coordinates
func (n *PathNode) Point() Point {
	return Point{X: n.X, Y: n.Y}
}

func (n *PathNode) String() string {
	return n.Point().String()
}

func (n *PathNode) reset() {
	n.GCost = Unreached
	n.HCost = 0
	n.CameFrom = nil
	n.CalculateFCost()
}
