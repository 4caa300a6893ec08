package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/grid"
	"github.com/wricardo/gridpath/nav/pathfinding"
)

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrMapNotFound is returned for unknown map names
	ErrMapNotFound = errors.New("map not found")
)

// NavService defines all map and path operations
type NavService interface {
	// Session Management
	CreateSession(ctx context.Context, mapID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Path Operations
	FindPath(ctx context.Context, sessionID string, req PathRequest) (*engine.QueryResult, error)
	SetWalkable(ctx context.Context, sessionID string, x, y int, walkable bool) (*CellUpdate, error)
	ToggleWalkable(ctx context.Context, sessionID string, x, y int) (*CellUpdate, error)
	Reset(ctx context.Context, sessionID string) (*engine.MapState, error)

	// Map State
	GetMapState(ctx context.Context, sessionID string) (*engine.MapState, error)
	GetQueryHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)
	Locate(ctx context.Context, sessionID string, world grid.Vec2) (*LocateResult, error)

	// Maps
	ListMaps(ctx context.Context) ([]*MapInfo, error)
	LoadMap(ctx context.Context, mapID string) (*engine.MapConfig, error)
	SaveMap(ctx context.Context, mapID string, config *engine.MapConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, mapID string, config *engine.MapConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, mapID string, config *engine.MapConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// MapManager handles map file loading
type MapManager interface {
	LoadMap(name string) (*engine.MapConfig, error)
	ListMaps() ([]*MapInfo, error)
	GetDefault() (string, *engine.MapConfig)
	SaveMap(name string, config *engine.MapConfig) error
}

// Notifier receives live session events
type Notifier interface {
	CellChanged(sessionID string, change engine.CellChange)
	SearchStep(sessionID string, snapshot pathfinding.Snapshot)
	PathFound(sessionID string, result *engine.QueryResult)
	StateChanged(sessionID string, state *engine.MapState)
}

// Session represents an active map session
type Session struct {
	ID             string
	MapID          string
	Engine         *engine.MapEngine
	Config         *engine.MapConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
