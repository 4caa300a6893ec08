package session

import (
	"fmt"
	"time"

	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData is the stored form of a session
type PersistedSessionData struct {
	ID             string           `json:"id" bson:"_id"`
	MapID          string           `json:"map_id" bson:"map_id"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at" bson:"last_accessed_at"`
	State          *engine.MapState `json:"state" bson:"state"`
}

// newPersistedData captures a session for storage
func newPersistedData(session *service.Session) (*PersistedSessionData, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	return &PersistedSessionData{
		ID:             session.ID,
		MapID:          session.MapID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		State:          session.Engine.GetState(),
	}, nil
}

// restore rebuilds a session from stored data, loading its map through maps
func (data *PersistedSessionData) restore(maps service.MapManager) (*service.Session, error) {
	config, err := maps.LoadMap(data.MapID)
	if err != nil {
		return nil, fmt.Errorf("failed to load map '%s': %w", data.MapID, err)
	}

	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create map engine: %w", err)
	}
	if data.State != nil {
		if err := eng.SetState(data.State); err != nil {
			return nil, fmt.Errorf("failed to restore map state: %w", err)
		}
	}

	return &service.Session{
		ID:             data.ID,
		MapID:          data.MapID,
		Engine:         eng,
		Config:         config,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}
