package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/grid"
	"github.com/wricardo/gridpath/nav/pathfinding"
	"github.com/wricardo/gridpath/nav/service"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	sessions map[string]*service.Session
	saves    int
	created  int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
	}
}

func (m *MockSessionManager) Create(id, mapID string, config *engine.MapConfig) (*service.Session, error) {
	if id == "" {
		id = fmt.Sprintf("s%d", m.created+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, err
	}

	session := &service.Session{
		ID:             id,
		MapID:          mapID,
		Engine:         eng,
		Config:         config,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
	m.sessions[id] = session
	m.created++
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	session, exists := m.sessions[id]
	if !exists {
		return nil, errors.New("session not found")
	}
	return session, nil
}

func (m *MockSessionManager) GetOrCreate(id, mapID string, config *engine.MapConfig) (*service.Session, error) {
	if session, exists := m.sessions[id]; exists {
		return session, nil
	}
	return m.Create(id, mapID, config)
}

func (m *MockSessionManager) List() []*service.Session {
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	if session, exists := m.sessions[id]; exists {
		session.LastAccessedAt = time.Now()
		return nil
	}
	return errors.New("session not found")
}

func (m *MockSessionManager) Save(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return errors.New("session not found")
	}
	m.saves++
	return nil
}

// MockMapManager implements service.MapManager for testing
type MockMapManager struct {
	maps  map[string]*engine.MapConfig
	saved map[string]*engine.MapConfig
}

func testMap() *engine.MapConfig {
	return &engine.MapConfig{
		Name:        "Service Map",
		Description: "Map for service tests",
		Width:       5,
		Height:      4,
		Layout: []string{
			"S....",
			".###.",
			".#...",
			"...#G",
		},
	}
}

func NewMockMapManager() *MockMapManager {
	return &MockMapManager{
		maps: map[string]*engine.MapConfig{
			"service": testMap(),
			"open":    engine.DefaultMapConfig(),
		},
		saved: make(map[string]*engine.MapConfig),
	}
}

func (m *MockMapManager) LoadMap(name string) (*engine.MapConfig, error) {
	config, exists := m.maps[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", service.ErrMapNotFound, name)
	}
	return config, nil
}

func (m *MockMapManager) ListMaps() ([]*service.MapInfo, error) {
	result := make([]*service.MapInfo, 0, len(m.maps))
	for id, config := range m.maps {
		result = append(result, &service.MapInfo{
			Filename:    id + ".json",
			MapID:       id,
			Name:        config.Name,
			Description: config.Description,
			Width:       config.Width,
			Height:      config.Height,
		})
	}
	return result, nil
}

func (m *MockMapManager) GetDefault() (string, *engine.MapConfig) {
	return "service", m.maps["service"]
}

func (m *MockMapManager) SaveMap(name string, config *engine.MapConfig) error {
	m.saved[name] = config
	return nil
}

// recordingNotifier implements service.Notifier for testing
type recordingNotifier struct {
	mu     sync.Mutex
	cells  []engine.CellChange
	cellOf []string
	steps  []pathfinding.Snapshot
	paths  []*engine.QueryResult
	states []*engine.MapState
}

func (n *recordingNotifier) CellChanged(sessionID string, change engine.CellChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cells = append(n.cells, change)
	n.cellOf = append(n.cellOf, sessionID)
}

func (n *recordingNotifier) SearchStep(sessionID string, snapshot pathfinding.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.steps = append(n.steps, snapshot)
}

func (n *recordingNotifier) PathFound(sessionID string, result *engine.QueryResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, result)
}

func (n *recordingNotifier) StateChanged(sessionID string, state *engine.MapState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

func newTestService(t *testing.T) (service.NavService, *MockSessionManager, *recordingNotifier) {
	t.Helper()
	sessions := NewMockSessionManager()
	notifier := &recordingNotifier{}
	svc := service.NewNavService(sessions, NewMockMapManager(), nil, service.WithNotifier(notifier))
	return svc, sessions, notifier
}

func TestNavService_CreateSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	tests := []struct {
		name    string
		mapID   string
		wantMap string
		wantErr bool
	}{
		{name: "default map", mapID: "", wantMap: "service"},
		{name: "specific map", mapID: "open", wantMap: "open"},
		{name: "unknown map", mapID: "nonexistent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.CreateSession(ctx, tt.mapID)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, service.ErrMapNotFound)
				assert.Contains(t, err.Error(), "Available maps")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMap, info.MapID)
			assert.NotEmpty(t, info.ID)
			require.NotNil(t, info.State)
			assert.Equal(t, info.Map.Name, info.State.MapName)
		})
	}
}

func TestNavService_GetListDelete(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	a, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "open")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "Service Map", got.MapName)

	list, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.DeleteSession(ctx, a.ID))
	_, err = svc.GetSession(ctx, a.ID)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, a.ID), service.ErrSessionNotFound)
}

func TestNavService_FindPath(t *testing.T) {
	ctx := context.Background()
	svc, sessions, notifier := newTestService(t)
	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	result, err := svc.FindPath(ctx, info.ID, service.PathRequest{})
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, engine.OutcomeFound, result.Outcome)
	assert.Equal(t, 64, result.Cost)
	assert.Equal(t, 1, sessions.saves)

	require.Len(t, notifier.paths, 1)
	assert.Equal(t, result.ID, notifier.paths[0].ID)
	assert.Empty(t, notifier.steps)

	_, err = svc.FindPath(ctx, "nope", service.PathRequest{})
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	_, err = svc.FindPath(ctx, info.ID, service.PathRequest{From: &engine.Point{X: 9, Y: 9}})
	assert.ErrorIs(t, err, engine.ErrOutOfBounds)
}

func TestNavService_FindPathStream(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)
	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	result, err := svc.FindPath(ctx, info.ID, service.PathRequest{Stream: true, Trace: true})
	require.NoError(t, err)
	require.NotEmpty(t, notifier.steps)
	assert.Len(t, notifier.steps, len(result.Snapshots))
	assert.Equal(t, 0, notifier.steps[0].Step)
}

func TestNavService_FindPathNoRoute(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	_, err = svc.SetWalkable(ctx, info.ID, 4, 2, false)
	require.NoError(t, err)
	_, err = svc.SetWalkable(ctx, info.ID, 3, 2, false)
	require.NoError(t, err)

	result, err := svc.FindPath(ctx, info.ID, service.PathRequest{})
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, engine.OutcomeNoPath, result.Outcome)
}

func TestNavService_Walkability(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)
	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	update, err := svc.SetWalkable(ctx, info.ID, 0, 1, false)
	require.NoError(t, err)
	assert.False(t, update.Walkable)
	assert.Equal(t, "####.", update.State.Rows[1])

	update, err = svc.ToggleWalkable(ctx, info.ID, 2, 1)
	require.NoError(t, err)
	assert.True(t, update.Walkable)
	assert.Equal(t, "##.#.", update.State.Rows[1])

	assert.Equal(t, []engine.CellChange{
		{X: 0, Y: 1, Walkable: false},
		{X: 2, Y: 1, Walkable: true},
	}, notifier.cells)

	_, err = svc.SetWalkable(ctx, info.ID, 5, 0, false)
	assert.ErrorIs(t, err, engine.ErrOutOfBounds)
	_, err = svc.ToggleWalkable(ctx, "nope", 0, 0)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestNavService_Reset(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService(t)
	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	_, err = svc.ToggleWalkable(ctx, info.ID, 0, 1)
	require.NoError(t, err)

	state, err := svc.Reset(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, testMap().Layout, state.Rows)
	require.Len(t, notifier.states, 1)
	assert.Len(t, notifier.cells, 2)

	got, err := svc.GetMapState(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, state.Rows, got.Rows)
}

func TestNavService_ReplacedEngineIsWatched(t *testing.T) {
	ctx := context.Background()
	svc, sessions, notifier := newTestService(t)
	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	// A reload from persistence swaps the engine behind the session
	old := sessions.sessions[info.ID].Engine
	fresh, err := engine.NewEngine(testMap())
	require.NoError(t, err)
	sessions.sessions[info.ID].Engine = fresh

	_, err = svc.ToggleWalkable(ctx, info.ID, 0, 1)
	require.NoError(t, err)
	require.NoError(t, old.SetWalkable(0, 2, false))

	assert.Equal(t, []engine.CellChange{{X: 0, Y: 1, Walkable: false}}, notifier.cells)
}

func TestNavService_GetQueryHistory(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.FindPath(ctx, info.ID, service.PathRequest{})
		require.NoError(t, err)
	}

	numbers := func(resp *service.HistoryResponse) []int {
		var out []int
		for _, q := range resp.Queries {
			out = append(out, q.QueryNumber)
		}
		return out
	}

	tests := []struct {
		name      string
		opts      service.HistoryOptions
		want      []int
		pages     int
		hasNext   bool
		hasPrev   bool
		wantLimit int
	}{
		{"defaults", service.HistoryOptions{}, []int{5, 4, 3, 2, 1}, 1, false, false, 20},
		{"first page desc", service.HistoryOptions{Page: 1, Limit: 2}, []int{5, 4}, 3, true, false, 2},
		{"last page desc", service.HistoryOptions{Page: 3, Limit: 2}, []int{1}, 3, false, true, 2},
		{"second page asc", service.HistoryOptions{Page: 2, Limit: 2, Order: "asc"}, []int{3, 4}, 3, true, true, 2},
		{"past the end", service.HistoryOptions{Page: 9, Limit: 2}, nil, 3, false, true, 2},
		{"limit capped", service.HistoryOptions{Limit: 1000, Order: "asc"}, []int{1, 2, 3, 4, 5}, 1, false, false, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.GetQueryHistory(ctx, info.ID, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, numbers(resp))
			assert.NotNil(t, resp.Queries)
			assert.Equal(t, 5, resp.TotalQueries)
			assert.Equal(t, tt.pages, resp.TotalPages)
			assert.Equal(t, tt.hasNext, resp.HasNext)
			assert.Equal(t, tt.hasPrev, resp.HasPrevious)
			assert.Equal(t, tt.wantLimit, resp.PageSize)
		})
	}
}

func TestNavService_Locate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	loc, err := svc.Locate(ctx, info.ID, grid.Vec2{X: 25, Y: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, loc.X)
	assert.Equal(t, 0, loc.Y)
	assert.True(t, loc.Walkable)
	assert.Len(t, loc.Neighbors, 5)

	loc, err = svc.Locate(ctx, info.ID, grid.Vec2{X: 500, Y: 5})
	require.NoError(t, err)
	assert.False(t, loc.InBounds)
	assert.Empty(t, loc.Neighbors)
}

func TestNavService_Maps(t *testing.T) {
	ctx := context.Background()
	sessions := NewMockSessionManager()
	maps := NewMockMapManager()
	svc := service.NewNavService(sessions, maps, nil)

	list, err := svc.ListMaps(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	m, err := svc.LoadMap(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, "Open Field", m.Name)

	require.NoError(t, svc.SaveMap(ctx, "copy", testMap()))
	assert.Contains(t, maps.saved, "copy")

	err = svc.SaveMap(ctx, "bad", &engine.MapConfig{Name: "bad"})
	assert.ErrorIs(t, err, engine.ErrInvalidMap)
	assert.NotContains(t, maps.saved, "bad")
}

func TestNavService_EvictedSessionsStopForwarding(t *testing.T) {
	ctx := context.Background()
	svc, sessions, notifier := newTestService(t)

	evicted, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	kept, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)
	stale := sessions.sessions[evicted.ID]

	// the session manager drops it behind the service's back, as expiry does
	delete(sessions.sessions, evicted.ID)

	_, err = svc.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, stale.Engine.SetWalkable(0, 1, false))
	assert.Empty(t, notifier.cells, "evicted engine should no longer be forwarded")

	_, err = svc.SetWalkable(ctx, kept.ID, 0, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, notifier.cellOf)
}
