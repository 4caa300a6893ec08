package engine

import (
	"github.com/wricardo/gridpath/nav/grid"
	"github.com/wricardo/gridpath/nav/pathfinding"
)

// Layout characters
const (
	CellOpen    = '.'
	CellBlocked = '#'
	CellStart   = 'S'
	CellGoal    = 'G'
	CellPath    = '*'
)

const (
	// Validation constants
	MinMapSize = 1
	MaxMapSize = 256

	DefaultMaxSnapshots = 2000
	WebSocketBufferSize = 256
)

// Query outcomes
const (
	OutcomeFound  = "found"
	OutcomeNoPath = "no_path"
	OutcomeLimit  = "limit"
)

// Point is re-exported so callers of this package need not import pathfinding
type Point = pathfinding.Point

// MapConfig describes a map file. Layout row i holds the cells with y == i.
type MapConfig struct {
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description" yaml:"description"`
	Width         int       `json:"width" yaml:"width"`
	Height        int       `json:"height" yaml:"height"`
	CellSize      float64   `json:"cell_size,omitempty" yaml:"cell_size,omitempty"`
	Origin        grid.Vec2 `json:"origin" yaml:"origin"`
	Layout        []string  `json:"layout" yaml:"layout"`
	CornerPolicy  string    `json:"corner_policy,omitempty" yaml:"corner_policy,omitempty"`
	MaxExpansions int       `json:"max_expansions,omitempty" yaml:"max_expansions,omitempty"`
}

// QueryHistoryEntry records one path query
type QueryHistoryEntry struct {
	ID          string `json:"id"`
	From        Point  `json:"from"`
	To          Point  `json:"to"`
	Found       bool   `json:"found"`
	Cost        int    `json:"cost"`
	Expanded    int    `json:"expanded"`
	PathLength  int    `json:"path_length"`
	Error       string `json:"error,omitempty"`
	Timestamp   int64  `json:"timestamp"`
	QueryNumber int    `json:"query_number"`
}

// MapState is the externally visible state of a map engine
type MapState struct {
	MapName       string    `json:"map_name"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	CellSize      float64   `json:"cell_size"`
	Origin        grid.Vec2 `json:"origin"`
	CornerPolicy  string    `json:"corner_policy"`
	MaxExpansions int       `json:"max_expansions,omitempty"`
	Rows          []string  `json:"rows"`
	Blocked       int       `json:"blocked"`
	Start         *Point    `json:"start,omitempty"`
	Goal          *Point    `json:"goal,omitempty"`

	LastPath     pathfinding.Path    `json:"last_path,omitempty"`
	QueryHistory []QueryHistoryEntry `json:"query_history"`
	TotalQueries int                 `json:"total_queries"`

	// CurrentQueries holds the queries since the last reset; QueryHistory stays cumulative.
	CurrentQueries      []QueryHistoryEntry `json:"current_queries"`
	CurrentQueriesCount int                 `json:"current_queries_count"`
}

// QueryOptions tunes a single FindPath call
type QueryOptions struct {
	// Trace records a snapshot per search step
	Trace        bool
	MaxSnapshots int
	// Observer receives live search progress in addition to tracing
	Observer pathfinding.Observer
	// MaxExpansions overrides the map's expansion limit when positive
	MaxExpansions int
}

// QueryResult is the outcome of a path query
type QueryResult struct {
	ID        string                 `json:"id"`
	From      Point                  `json:"from"`
	To        Point                  `json:"to"`
	Found     bool                   `json:"found"`
	Outcome   string                 `json:"outcome"`
	Path      pathfinding.Path       `json:"path"`
	Cost      int                    `json:"cost"`
	Expanded  int                    `json:"expanded"`
	Error     string                 `json:"error,omitempty"`
	Overlay   []string               `json:"overlay,omitempty"`
	Snapshots []pathfinding.Snapshot `json:"snapshots,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
}

// CellChange is delivered to engine subscribers when walkability changes
type CellChange struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	Walkable bool `json:"walkable"`
}

// Location maps a world position onto the grid
type Location struct {
	World    grid.Vec2 `json:"world"`
	X        int       `json:"x"`
	Y        int       `json:"y"`
	InBounds bool      `json:"in_bounds"`
	Walkable bool      `json:"walkable"`
	Corner   grid.Vec2 `json:"corner"`
	Center   grid.Vec2 `json:"center"`
}

// NeighborCell is one cell of the 8-neighborhood around a location
type NeighborCell struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	Walkable bool `json:"walkable"`
	Step     bool `json:"step"`
}
