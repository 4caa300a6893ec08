package pathfinding

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

// Path is an ordered sequence of cells from start to end, both included
type Path []Point

// Cost returns the sum of octile step costs along the path
func (p Path) Cost() int {
	total := 0
	for i := 1; i < len(p); i++ {
		total += OctileDistance(p[i-1].X, p[i-1].Y, p[i].X, p[i].Y)
	}
	return total
}

// Contains reports whether (x, y) lies on the path
func (p Path) Contains(x, y int) bool {
	for _, pt := range p {
		if pt.X == x && pt.Y == y {
			return true
		}
	}
	return false
}

// Result describes the outcome of one search
type Result struct {
	Path     Path `json:"path"`
	Cost     int  `json:"cost"`
	Expanded int  `json:"expanded"`
	Found    bool `json:"found"`
}

// Search runs A* from start to end.
//
// Errors: ErrNoPath for out-of-range endpoints or an unreachable end,
// ErrSearchLimit when the expansion limit is hit, ErrBrokenPath if path
// reconstruction does not terminate at the start. On error the returned
// Result still carries the expansion count.
func (p *Pathfinder) Search(start, end Point, opts ...SearchOption) (Result, error) {
	cfg := searchConfig{corners: p.corners, maxExpansions: p.maxExpansions}
	for _, opt := range opts {
		opt(&cfg)
	}

	startNode, ok := p.grid.Get(start.X, start.Y)
	if !ok {
		return Result{}, fmt.Errorf("%w: start %v out of range", ErrNoPath, start)
	}
	endNode, ok := p.grid.Get(end.X, end.Y)
	if !ok {
		return Result{}, fmt.Errorf("%w: end %v out of range", ErrNoPath, end)
	}

	p.reset()

	s := &SearchState{
		pf:      p,
		open:    []*PathNode{startNode},
		openSet: mapset.New[*PathNode](),
		closed:  mapset.New[*PathNode](),
		current: startNode,
	}
	s.openSet.Put(startNode)

	startNode.GCost = 0
	startNode.HCost = OctileDistance(start.X, start.Y, end.X, end.Y)
	startNode.CalculateFCost()

	s.emitStep(cfg.observer)

	buf := make([]*PathNode, 0, 8)
	for len(s.open) > 0 {
		i := s.lowestFCost()
		current := s.open[i]
		s.current = current

		if current == endNode {
			s.emitStep(cfg.observer)
			path, err := p.reconstruct(startNode, endNode)
			if err != nil {
				s.emitDone(cfg.observer, nil)
				return Result{Expanded: s.expanded}, err
			}
			s.emitDone(cfg.observer, path)
			return Result{
				Path:     path,
				Cost:     endNode.GCost,
				Expanded: s.expanded,
				Found:    true,
			}, nil
		}

		if cfg.maxExpansions > 0 && s.expanded >= cfg.maxExpansions {
			s.emitDone(cfg.observer, nil)
			return Result{Expanded: s.expanded}, fmt.Errorf("%w: %d nodes", ErrSearchLimit, s.expanded)
		}

		s.removeOpen(i)
		s.closed.Put(current)
		s.expanded++

		for _, nb := range p.neighbors(current, buf) {
			if s.closed.Has(nb) {
				continue
			}
			if !nb.Walkable {
				s.closed.Put(nb)
				continue
			}
			if !cfg.corners.allows(p.grid, current, nb) {
				continue
			}

			tentative := addCost(current.GCost, OctileDistance(current.X, current.Y, nb.X, nb.Y))
			if tentative < nb.GCost {
				nb.CameFrom = current
				nb.GCost = tentative
				nb.HCost = OctileDistance(nb.X, nb.Y, end.X, end.Y)
				nb.CalculateFCost()

				if !s.openSet.Has(nb) {
					s.open = append(s.open, nb)
					s.openSet.Put(nb)
				}
			}

			s.emitStep(cfg.observer)
		}
	}

	s.current = nil
	s.emitDone(cfg.observer, nil)
	return Result{Expanded: s.expanded}, fmt.Errorf("%w: %v unreachable from %v", ErrNoPath, end, start)
}

// reconstruct walks back-references from end to start. The walk is capped at
// the node count so a corrupted chain cannot loop forever.
func (p *Pathfinder) reconstruct(start, end *PathNode) (Path, error) {
	limit := p.grid.Len()
	path := make(Path, 0, 16)
	n := end
	for n != nil {
		if len(path) >= limit {
			return nil, fmt.Errorf("%w: exceeded %d steps", ErrBrokenPath, limit)
		}
		path = append(path, n.Point())
		n = n.CameFrom
	}
	if last := path[len(path)-1]; last != start.Point() {
		return nil, fmt.Errorf("%w: chain ends at %v", ErrBrokenPath, last)
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
