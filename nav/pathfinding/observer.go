package pathfinding

import (
	"github.com/zyedidia/generic/mapset"
)

// Observer receives search progress. Implementations must not mutate nodes.
type Observer interface {
	// OnSearchStep is called after initialization, after every neighbor evaluation,
	// and once more when the goal is taken from the open set.
	OnSearchStep(s *SearchState)
	// OnSearchDone is called once when the search ends; path is nil on failure.
	OnSearchDone(s *SearchState, path Path)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Step func(s *SearchState)
	Done func(s *SearchState, path Path)
}

func (o ObserverFuncs) OnSearchStep(s *SearchState) {
	if o.Step != nil {
		o.Step(s)
	}
}

func (o ObserverFuncs) OnSearchDone(s *SearchState, path Path) {
	if o.Done != nil {
		o.Done(s, path)
	}
}

// SearchState is a read-only view of a running search
type SearchState struct {
	pf       *Pathfinder
	open     []*PathNode
	openSet  mapset.Set[*PathNode]
	closed   mapset.Set[*PathNode]
	current  *PathNode
	step     int
	expanded int
}

// Step returns the number of step notifications emitted so far, starting at 0
func (s *SearchState) Step() int { return s.step }

// Expanded returns the number of nodes moved from open to closed
func (s *SearchState) Expanded() int { return s.expanded }

// Current returns the node being expanded. The boolean is false after an exhausted search.
func (s *SearchState) Current() (Point, bool) {
	if s.current == nil {
		return Point{}, false
	}
	return s.current.Point(), true
}

// OpenLen returns the size of the open list
func (s *SearchState) OpenLen() int { return len(s.open) }

// ClosedLen returns the size of the closed set
func (s *SearchState) ClosedLen() int { return s.closed.Size() }

// IsOpen reports whether (x, y) is on the open list
func (s *SearchState) IsOpen(x, y int) bool {
	n, ok := s.pf.grid.Get(x, y)
	return ok && s.openSet.Has(n)
}

// IsClosed reports whether (x, y) is in the closed set
func (s *SearchState) IsClosed(x, y int) bool {
	n, ok := s.pf.grid.Get(x, y)
	return ok && s.closed.Has(n)
}

// CellState is a copy of one node's search state
type CellState struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	G        int  `json:"g"`
	H        int  `json:"h"`
	F        int  `json:"f"`
	Walkable bool `json:"walkable"`
	Open     bool `json:"open,omitempty"`
	Closed   bool `json:"closed,omitempty"`
	Current  bool `json:"current,omitempty"`
	OnPath   bool `json:"on_path,omitempty"`
}

// Reached reports whether the search assigned the cell a finite gCost
func (c CellState) Reached() bool { return c.G != Unreached }

// Cells calls fn with the state of every node in row-major order
func (s *SearchState) Cells(fn func(c CellState)) {
	s.pf.grid.Each(func(x, y int, n *PathNode) {
		fn(CellState{
			X:        x,
			Y:        y,
			G:        n.GCost,
			H:        n.HCost,
			F:        n.FCost,
			Walkable: n.Walkable,
			Open:     s.openSet.Has(n),
			Closed:   s.closed.Has(n),
			Current:  n == s.current,
		})
	})
}

// Snapshot is an immutable capture of a search step
type Snapshot struct {
	Step    int         `json:"step"`
	Current *Point      `json:"current,omitempty"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Cells   []CellState `json:"cells"`
}

// Cell returns the captured state of (x, y)
func (sn Snapshot) Cell(x, y int) (CellState, bool) {
	if x < 0 || y < 0 || x >= sn.Width || y >= sn.Height {
		return CellState{}, false
	}
	return sn.Cells[y*sn.Width+x], true
}

// Snapshot copies the current state of every node
func (s *SearchState) Snapshot() Snapshot {
	sn := Snapshot{
		Step:   s.step,
		Width:  s.pf.grid.Width(),
		Height: s.pf.grid.Height(),
		Cells:  make([]CellState, 0, s.pf.grid.Len()),
	}
	if cur, ok := s.Current(); ok {
		sn.Current = &cur
	}
	s.Cells(func(c CellState) {
		sn.Cells = append(sn.Cells, c)
	})
	return sn
}

func (s *SearchState) lowestFCost() int {
	best := 0
	for i := 1; i < len(s.open); i++ {
		if s.open[i].FCost < s.open[best].FCost {
			best = i
		}
	}
	return best
}

func (s *SearchState) removeOpen(i int) {
	n := s.open[i]
	copy(s.open[i:], s.open[i+1:])
	s.open[len(s.open)-1] = nil
	s.open = s.open[:len(s.open)-1]
	s.openSet.Remove(n)
}

func (s *SearchState) emitStep(o Observer) {
	if o == nil {
		return
	}
	o.OnSearchStep(s)
	s.step++
}

func (s *SearchState) emitDone(o Observer, path Path) {
	if o == nil {
		return
	}
	o.OnSearchDone(s, path)
}

// Recorder is an Observer that keeps a Snapshot of every step and the final path.
// Limit caps the number of stored snapshots; zero keeps all of them.
type Recorder struct {
	Limit     int
	Snapshots []Snapshot
	Path      Path
	Truncated bool
	Done      bool
}

// NewRecorder returns a Recorder keeping at most limit snapshots
func NewRecorder(limit int) *Recorder {
	return &Recorder{Limit: limit}
}

func (r *Recorder) OnSearchStep(s *SearchState) {
	if r.Limit > 0 && len(r.Snapshots) >= r.Limit {
		r.Truncated = true
		return
	}
	r.Snapshots = append(r.Snapshots, s.Snapshot())
}

func (r *Recorder) OnSearchDone(s *SearchState, path Path) {
	r.Path = path
	r.Done = true
}

// Final returns the last recorded snapshot with path membership filled in.
func (r *Recorder) Final() (Snapshot, bool) {
	if len(r.Snapshots) == 0 {
		return Snapshot{}, false
	}
	last := r.Snapshots[len(r.Snapshots)-1]
	out := last
	out.Cells = make([]CellState, len(last.Cells))
	copy(out.Cells, last.Cells)
	for _, pt := range r.Path {
		if i := pt.Y*out.Width + pt.X; i >= 0 && i < len(out.Cells) {
			out.Cells[i].OnPath = true
		}
	}
	return out, true
}

// Reset clears recorded data so the Recorder can observe another search
func (r *Recorder) Reset() {
	r.Snapshots = nil
	r.Path = nil
	r.Truncated = false
	r.Done = false
}
