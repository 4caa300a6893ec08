package engine

import (
	"errors"
	"fmt"

	"github.com/wricardo/gridpath/nav/grid"
	"github.com/wricardo/gridpath/nav/pathfinding"
)

var (
	// ErrOutOfBounds is returned for coordinates outside the map
	ErrOutOfBounds = errors.New("coordinates out of bounds")
	// ErrNoEndpoint is returned when a query omits an endpoint the map does not declare
	ErrNoEndpoint = errors.New("map declares no such endpoint")
	// ErrStateMismatch is returned when restored state does not fit the map
	ErrStateMismatch = errors.New("state does not match map")
)

// CellChangeFunc receives walkability changes
type CellChangeFunc func(change CellChange)

// Engine provides the main interface for map operations
type Engine interface {
	// State management
	GetState() *MapState
	SetState(state *MapState) error
	Reset() *MapState

	// Configuration
	GetConfig() *MapConfig
	SetConfig(config *MapConfig) error

	// Queries
	FindPath(from, to *Point, opts QueryOptions) (*QueryResult, error)
	GetQueryHistory() []QueryHistoryEntry
	GetLastQuery() *QueryHistoryEntry

	// Walkability
	SetWalkable(x, y int, walkable bool) error
	ToggleWalkable(x, y int) (bool, error)
	IsWalkable(x, y int) bool

	// Coordinate mapping
	Locate(world grid.Vec2) Location
	Neighborhood(x, y int) ([]NeighborCell, error)

	// Observation
	Subscribe(fn CellChangeFunc) (unsubscribe func())
	Render(path pathfinding.Path) []string
}

// MapEngine implements Engine on top of a Pathfinder
type MapEngine struct {
	config *MapConfig
	pf     *pathfinding.Pathfinder

	lastPath       pathfinding.Path
	history        []QueryHistoryEntry
	currentQueries []QueryHistoryEntry
	totalQueries   int

	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn CellChangeFunc
}

// NewEngine creates a map engine from a validated configuration
func NewEngine(config *MapConfig) (*MapEngine, error) {
	if err := ValidateMapConfig(config); err != nil {
		return nil, err
	}

	e := &MapEngine{
		history:        []QueryHistoryEntry{},
		currentQueries: []QueryHistoryEntry{},
	}
	if err := e.load(config); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngineWithDefaults creates a map engine from DefaultMapConfig
func NewEngineWithDefaults() *MapEngine {
	e, err := NewEngine(DefaultMapConfig())
	if err != nil {
		panic(fmt.Sprintf("default map is invalid: %v", err))
	}
	return e
}

// load builds a fresh pathfinder for config and applies its walls
func (e *MapEngine) load(config *MapConfig) error {
	policy, err := pathfinding.ParseCornerPolicy(config.CornerPolicy)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}
	cellSize := config.CellSize
	if cellSize == 0 {
		cellSize = pathfinding.DefaultCellSize
	}

	pf, err := pathfinding.New(config.Width, config.Height,
		pathfinding.WithCellSize(cellSize),
		pathfinding.WithOrigin(config.Origin),
		pathfinding.WithCornerPolicy(policy),
		pathfinding.WithMaxExpansions(config.MaxExpansions),
	)
	if err != nil {
		return err
	}

	applyLayout(pf, config.Layout)
	pf.Grid().Subscribe(e.onCellChanged)

	e.config = config
	e.pf = pf
	e.lastPath = nil
	return nil
}

// applyLayout sets walkability from layout rows without notifying anyone
func applyLayout(pf *pathfinding.Pathfinder, rows []string) {
	pf.Grid().Each(func(x, y int, n *pathfinding.PathNode) {
		n.Walkable = !(y < len(rows) && x < len(rows[y]) && rows[y][x] == CellBlocked)
	})
}

func (e *MapEngine) onCellChanged(x, y int) {
	if len(e.listeners) == 0 {
		return
	}
	change := CellChange{X: x, Y: y, Walkable: e.pf.IsWalkable(x, y)}
	ls := make([]listener, len(e.listeners))
	copy(ls, e.listeners)
	for _, l := range ls {
		l.fn(change)
	}
}

// Subscribe registers fn for walkability changes. Subscriptions survive SetConfig.
func (e *MapEngine) Subscribe(fn CellChangeFunc) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Pathfinder exposes the underlying pathfinder
func (e *MapEngine) Pathfinder() *pathfinding.Pathfinder {
	return e.pf
}

// GetConfig returns the current map configuration
func (e *MapEngine) GetConfig() *MapConfig {
	return e.config
}

// SetConfig replaces the map and resets walls and the current query segment
func (e *MapEngine) SetConfig(config *MapConfig) error {
	if err := ValidateMapConfig(config); err != nil {
		return err
	}
	if err := e.load(config); err != nil {
		return err
	}
	e.currentQueries = []QueryHistoryEntry{}
	return nil
}

// GetState returns a snapshot of the map state
func (e *MapEngine) GetState() *MapState {
	start, goal := e.config.Markers()
	rows := e.Render(nil)

	blocked := 0
	for _, row := range rows {
		for i := 0; i < len(row); i++ {
			if row[i] == CellBlocked {
				blocked++
			}
		}
	}

	return &MapState{
		MapName:             e.config.Name,
		Width:               e.pf.Width(),
		Height:              e.pf.Height(),
		CellSize:            e.pf.Grid().CellSize(),
		Origin:              e.pf.Grid().Origin(),
		CornerPolicy:        e.pf.CornerPolicy().String(),
		MaxExpansions:       e.pf.MaxExpansions(),
		Rows:                rows,
		Blocked:             blocked,
		Start:               start,
		Goal:                goal,
		LastPath:            e.lastPath,
		QueryHistory:        e.history,
		TotalQueries:        e.totalQueries,
		CurrentQueries:      e.currentQueries,
		CurrentQueriesCount: len(e.currentQueries),
	}
}

// SetState restores walls and history from a previously captured state
func (e *MapEngine) SetState(state *MapState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Width != e.pf.Width() || state.Height != e.pf.Height() || len(state.Rows) != state.Height {
		return fmt.Errorf("%w: expected %dx%d, got %dx%d with %d rows",
			ErrStateMismatch, e.pf.Width(), e.pf.Height(), state.Width, state.Height, len(state.Rows))
	}
	for y, row := range state.Rows {
		if len(row) != state.Width {
			return fmt.Errorf("%w: row %d has %d cells", ErrStateMismatch, y, len(row))
		}
	}

	applyLayout(e.pf, state.Rows)
	e.lastPath = state.LastPath
	e.history = append([]QueryHistoryEntry{}, state.QueryHistory...)
	e.currentQueries = append([]QueryHistoryEntry{}, state.CurrentQueries...)
	e.totalQueries = state.TotalQueries
	if e.totalQueries < len(e.history) {
		e.totalQueries = len(e.history)
	}
	return nil
}

// Reset restores the layout walls. Cumulative history survives; the current segment is cleared.
func (e *MapEngine) Reset() *MapState {
	e.pf.Grid().Each(func(x, y int, n *pathfinding.PathNode) {
		want := !e.config.Blocked(x, y)
		if n.Walkable != want {
			n.SetWalkable(want)
		}
	})
	e.lastPath = nil
	e.currentQueries = []QueryHistoryEntry{}
	return e.GetState()
}

// IsWalkable reports whether (x, y) is inside the map and walkable
func (e *MapEngine) IsWalkable(x, y int) bool {
	return e.pf.IsWalkable(x, y)
}

// SetWalkable changes the walkability of a cell
func (e *MapEngine) SetWalkable(x, y int, walkable bool) error {
	if !e.pf.SetWalkable(x, y, walkable) {
		return fmt.Errorf("%w: (%d,%d) on %dx%d map", ErrOutOfBounds, x, y, e.pf.Width(), e.pf.Height())
	}
	return nil
}

// ToggleWalkable flips the walkability of a cell and returns the new value
func (e *MapEngine) ToggleWalkable(x, y int) (bool, error) {
	walkable, ok := e.pf.ToggleWalkable(x, y)
	if !ok {
		return false, fmt.Errorf("%w: (%d,%d) on %dx%d map", ErrOutOfBounds, x, y, e.pf.Width(), e.pf.Height())
	}
	return walkable, nil
}

// Locate maps a world position to its cell
func (e *MapEngine) Locate(world grid.Vec2) Location {
	g := e.pf.Grid()
	x, y := g.WorldToGrid(world)
	return Location{
		World:    world,
		X:        x,
		Y:        y,
		InBounds: g.InBounds(x, y),
		Walkable: e.pf.IsWalkable(x, y),
		Corner:   g.GridToWorld(x, y),
		Center:   g.CellCenter(x, y),
	}
}

// Neighborhood lists the 8 cells around (x, y) in search order, marking
// which of them a search could step to.
func (e *MapEngine) Neighborhood(x, y int) ([]NeighborCell, error) {
	if !e.pf.Grid().InBounds(x, y) {
		return nil, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, y)
	}
	from := Point{X: x, Y: y}
	var out []NeighborCell
	for _, nb := range e.pf.Neighbors(x, y) {
		out = append(out, NeighborCell{
			X:        nb.X,
			Y:        nb.Y,
			Walkable: e.pf.IsWalkable(nb.X, nb.Y),
			Step:     e.pf.CanStep(from, nb),
		})
	}
	return out, nil
}
