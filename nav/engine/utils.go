package engine

import (
	"github.com/zyedidia/generic/mapset"

	"github.com/wricardo/gridpath/nav/pathfinding"
)

// CountBlocked counts the unwalkable cells of a pathfinder
func CountBlocked(pf *pathfinding.Pathfinder) int {
	return len(pf.Blocked())
}

// BlockedRatio returns the share of unwalkable cells, between 0 and 1
func BlockedRatio(pf *pathfinding.Pathfinder) float64 {
	total := pf.Width() * pf.Height()
	if total == 0 {
		return 0
	}
	return float64(CountBlocked(pf)) / float64(total)
}

// Reachable returns every cell a search starting at from can reach, from included,
// honoring the pathfinder's corner policy.
func Reachable(pf *pathfinding.Pathfinder, from Point) mapset.Set[Point] {
	visited := mapset.New[Point]()
	if _, ok := pf.Node(from.X, from.Y); !ok {
		return visited
	}

	queue := []Point{from}
	visited.Put(from)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, nb := range pf.Neighbors(current.X, current.Y) {
			if visited.Has(nb) || !pf.CanStep(current, nb) {
				continue
			}
			visited.Put(nb)
			queue = append(queue, nb)
		}
	}
	return visited
}

// Isolated returns the walkable cells that cannot be reached from from, in row-major order
func Isolated(pf *pathfinding.Pathfinder, from Point) []Point {
	reach := Reachable(pf, from)
	var out []Point
	pf.Grid().Each(func(x, y int, n *pathfinding.PathNode) {
		p := Point{X: x, Y: y}
		if n.Walkable && !reach.Has(p) {
			out = append(out, p)
		}
	})
	return out
}
