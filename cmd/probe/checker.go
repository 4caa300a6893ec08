package main

import (
	"fmt"
	"math/rand"

	"github.com/zyedidia/generic/mapset"

	"github.com/wricardo/gridpath/nav/engine"
)

// Checker keeps a local copy of the session's map and predicts query outcomes from it
type Checker struct {
	engine *engine.MapEngine
	open   []engine.Point
	rng    *rand.Rand

	// reachability is cached per source cell until the map changes
	reach map[engine.Point]mapset.Set[engine.Point]
}

// NewChecker rebuilds the map described by state
func NewChecker(state *engine.MapState, rng *rand.Rand) (*Checker, error) {
	c := &Checker{rng: rng}
	if err := c.Sync(state); err != nil {
		return nil, err
	}
	return c, nil
}

// Sync replaces the local map with state
func (c *Checker) Sync(state *engine.MapState) error {
	if state == nil {
		return fmt.Errorf("no map state")
	}
	eng, err := engine.NewEngine(&engine.MapConfig{
		Name:          state.MapName,
		Description:   "local copy of " + state.MapName,
		Width:         state.Width,
		Height:        state.Height,
		CellSize:      state.CellSize,
		Origin:        state.Origin,
		Layout:        state.Rows,
		CornerPolicy:  state.CornerPolicy,
		MaxExpansions: state.MaxExpansions,
	})
	if err != nil {
		return fmt.Errorf("rebuild map: %w", err)
	}

	c.engine = eng
	c.reach = make(map[engine.Point]mapset.Set[engine.Point])
	c.open = c.open[:0]
	for y := 0; y < state.Height; y++ {
		for x := 0; x < state.Width; x++ {
			if eng.IsWalkable(x, y) {
				c.open = append(c.open, engine.Point{X: x, Y: y})
			}
		}
	}
	return nil
}

// OpenCells returns the number of walkable cells
func (c *Checker) OpenCells() int {
	return len(c.open)
}

// RandomPair picks two walkable cells. ok is false when the map has none.
func (c *Checker) RandomPair() (from, to engine.Point, ok bool) {
	if len(c.open) == 0 {
		return engine.Point{}, engine.Point{}, false
	}
	return c.open[c.rng.Intn(len(c.open))], c.open[c.rng.Intn(len(c.open))], true
}

// RandomCell picks any cell on the map
func (c *Checker) RandomCell() engine.Point {
	pf := c.engine.Pathfinder()
	return engine.Point{X: c.rng.Intn(pf.Width()), Y: c.rng.Intn(pf.Height())}
}

// Reachable reports whether the local map connects from and to
func (c *Checker) Reachable(from, to engine.Point) bool {
	set, ok := c.reach[from]
	if !ok {
		set = engine.Reachable(c.engine.Pathfinder(), from)
		c.reach[from] = set
	}
	return set.Has(to)
}

// Verify compares a server result with the local prediction. It returns a
// description of the disagreement, or "" when they agree. Results that hit the
// expansion limit are not judged.
func (c *Checker) Verify(result *engine.QueryResult) string {
	if result.Outcome == engine.OutcomeLimit {
		return ""
	}

	want := c.Reachable(result.From, result.To)
	if result.Found != want {
		return fmt.Sprintf("(%d, %d) -> (%d, %d): server found=%t, local reachability=%t",
			result.From.X, result.From.Y, result.To.X, result.To.Y, result.Found, want)
	}
	if !result.Found {
		return ""
	}

	if n := len(result.Path); n == 0 ||
		result.Path[0].X != result.From.X || result.Path[0].Y != result.From.Y ||
		result.Path[n-1].X != result.To.X || result.Path[n-1].Y != result.To.Y {
		return fmt.Sprintf("(%d, %d) -> (%d, %d): path does not join the endpoints",
			result.From.X, result.From.Y, result.To.X, result.To.Y)
	}
	for _, p := range result.Path {
		if !c.engine.IsWalkable(p.X, p.Y) {
			return fmt.Sprintf("(%d, %d) -> (%d, %d): path crosses blocked cell (%d, %d)",
				result.From.X, result.From.Y, result.To.X, result.To.Y, p.X, p.Y)
		}
	}

	if local, err := c.engine.FindPath(&result.From, &result.To, engine.QueryOptions{}); err == nil && local.Found && local.Cost != result.Cost {
		return fmt.Sprintf("(%d, %d) -> (%d, %d): server cost %d, local cost %d",
			result.From.X, result.From.Y, result.To.X, result.To.Y, result.Cost, local.Cost)
	}
	return ""
}
