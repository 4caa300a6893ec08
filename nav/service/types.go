package service

import (
	"time"

	"github.com/wricardo/gridpath/nav/engine"
)

// SessionInfo provides information about a map session
type SessionInfo struct {
	ID             string            `json:"id"`
	MapID          string            `json:"map_id"`
	MapName        string            `json:"map_name"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	State          *engine.MapState  `json:"state"`
	Map            *engine.MapConfig `json:"map"`
}

// PathRequest describes a path query. Nil endpoints fall back to the map's S and G markers.
type PathRequest struct {
	From          *engine.Point `json:"from,omitempty"`
	To            *engine.Point `json:"to,omitempty"`
	Trace         bool          `json:"trace,omitempty"`
	MaxSnapshots  int           `json:"max_snapshots,omitempty"`
	MaxExpansions int           `json:"max_expansions,omitempty"`
	// Stream forwards every search step to the Notifier
	Stream bool `json:"stream,omitempty"`
}

// CellUpdate is the outcome of a walkability edit
type CellUpdate struct {
	engine.CellChange
	State *engine.MapState `json:"state"`
}

// LocateResult maps a world position onto a session's grid
type LocateResult struct {
	engine.Location
	Neighbors []engine.NeighborCell `json:"neighbors,omitempty"`
}

// HistoryOptions configures query history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated query history
type HistoryResponse struct {
	Queries      []engine.QueryHistoryEntry `json:"queries"`
	TotalQueries int                        `json:"total_queries"`
	Page         int                        `json:"page"`
	PageSize     int                        `json:"page_size"`
	TotalPages   int                        `json:"total_pages"`
	HasNext      bool                       `json:"has_next"`
	HasPrevious  bool                       `json:"has_previous"`
}

// MapInfo provides information about a map file
type MapInfo struct {
	Filename     string `json:"filename"`
	MapID        string `json:"map_id"` // The identifier to use for session creation
	Name         string `json:"name"`   // Display name
	Description  string `json:"description"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	CornerPolicy string `json:"corner_policy,omitempty"`
}
