package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/inconshreveable/log15/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wricardo/gridpath/logging"
	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/grid"
	"github.com/wricardo/gridpath/nav/pathfinding"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// navServiceImpl implements the NavService interface
type navServiceImpl struct {
	sessions SessionManager
	maps     MapManager
	log      log15.Logger
	mu       sync.RWMutex

	notifier Notifier
	// watched tracks the engine each session's cell changes are forwarded from
	watched map[string]watch
}

type watch struct {
	engine *engine.MapEngine
	unsub  func()
}

// Option configures a nav service
type Option func(*navServiceImpl)

// WithNotifier installs the receiver of live session events
func WithNotifier(n Notifier) Option {
	return func(s *navServiceImpl) {
		s.notifier = n
	}
}

// NewNavService creates a new nav service instance
func NewNavService(sessions SessionManager, maps MapManager, logger log15.Logger, opts ...Option) NavService {
	s := &navServiceImpl{
		sessions: sessions,
		maps:     maps,
		log:      logging.OrDiscard(logger).New("component", "service"),
		watched:  make(map[string]watch),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session looks a session up and keeps its cell-change forwarding current.
// Callers hold s.mu.
func (s *navServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.watch(sess)
	return sess, nil
}

// watch subscribes to a session engine's cell changes once per engine instance
func (s *navServiceImpl) watch(sess *Session) {
	w, ok := s.watched[sess.ID]
	if ok && w.engine == sess.Engine {
		return
	}
	if ok {
		w.unsub()
	} else {
		s.pruneWatched()
	}
	id := sess.ID
	unsub := sess.Engine.Subscribe(func(change engine.CellChange) {
		if s.notifier != nil {
			s.notifier.CellChanged(id, change)
		}
	})
	s.watched[id] = watch{engine: sess.Engine, unsub: unsub}
}

func (s *navServiceImpl) unwatch(sessionID string) {
	if w, ok := s.watched[sessionID]; ok {
		w.unsub()
		delete(s.watched, sessionID)
	}
}

// pruneWatched drops subscriptions for sessions the session manager no longer
// holds, such as ones evicted by expiry or store sync
func (s *navServiceImpl) pruneWatched() {
	if len(s.watched) == 0 {
		return
	}
	live := make(map[string]bool)
	for _, sess := range s.sessions.List() {
		live[sess.ID] = true
	}
	for id := range s.watched {
		if !live[id] {
			s.unwatch(id)
		}
	}
}

func (s *navServiceImpl) persist(sessionID string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.log.Warn("failed to persist session", "session", sessionID, "err", err)
	}
}

func (s *navServiceImpl) info(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		MapID:          sess.MapID,
		MapName:        sess.Config.Name,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		State:          sess.Engine.GetState(),
		Map:            sess.Config,
	}
}

// CreateSession creates a new session on the named map, or the default map when mapID is empty
func (s *navServiceImpl) CreateSession(ctx context.Context, mapID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var config *engine.MapConfig
	var err error
	if mapID != "" {
		config, err = s.maps.LoadMap(mapID)
		if err != nil {
			if errors.Is(err, ErrMapNotFound) {
				available, listErr := s.maps.ListMaps()
				if listErr == nil && len(available) > 0 {
					var ids []string
					for _, m := range available {
						ids = append(ids, m.MapID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available maps: %v", ErrMapNotFound, mapID, ids)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/maps to list available maps", ErrMapNotFound, mapID)
			}
			return nil, fmt.Errorf("failed to load map %s: %w", mapID, err)
		}
	} else {
		mapID, config = s.maps.GetDefault()
	}

	sess, err := s.sessions.Create("", mapID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.watch(sess)

	s.log.Info("session created", "session", sess.ID, "map", mapID)
	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *navServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sess.ID)
	return s.info(sess), nil
}

// ListSessions returns all active sessions
func (s *navServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *navServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.unwatch(sess.ID)
	if err := s.sessions.Delete(sess.ID); err != nil {
		return err
	}
	s.log.Info("session deleted", "session", sess.ID)
	return nil
}

// FindPath runs a path query on a session's map
func (s *navServiceImpl) FindPath(ctx context.Context, sessionID string, req PathRequest) (*engine.QueryResult, error) {
	_, span := tracer.Start(ctx, "service.NavService.FindPath",
		trace.WithAttributes(
			attribute.String("session_id", sessionID),
			attribute.Bool("trace", req.Trace),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sess.ID)

	opts := engine.QueryOptions{
		Trace:         req.Trace,
		MaxSnapshots:  req.MaxSnapshots,
		MaxExpansions: req.MaxExpansions,
	}
	if req.Stream && s.notifier != nil {
		notifier, id := s.notifier, sess.ID
		opts.Observer = pathfinding.ObserverFuncs{
			Step: func(st *pathfinding.SearchState) {
				notifier.SearchStep(id, st.Snapshot())
			},
		}
	}

	start := time.Now()
	result, err := sess.Engine.FindPath(req.From, req.To, opts)
	elapsed := time.Since(start)
	if err != nil {
		pathQueryTotal.WithLabelValues(resultError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "path query failed")
		return nil, err
	}

	pathQueryTotal.WithLabelValues(result.Outcome).Inc()
	pathQueryDuration.WithLabelValues(result.Outcome).Observe(elapsed.Seconds())
	pathExpandedNodes.Observe(float64(result.Expanded))

	span.SetAttributes(
		attribute.String("outcome", result.Outcome),
		attribute.Int("cost", result.Cost),
		attribute.Int("expanded", result.Expanded),
		attribute.Int("path_length", len(result.Path)),
		attribute.Int64("duration_us", elapsed.Microseconds()),
	)
	span.SetStatus(codes.Ok, "path query complete")

	s.log.Debug("path query",
		"session", sess.ID,
		"from", result.From, "to", result.To,
		"outcome", result.Outcome, "cost", result.Cost, "expanded", result.Expanded,
		"elapsed", elapsed)

	s.persist(sess.ID)
	if s.notifier != nil {
		s.notifier.PathFound(sess.ID, result)
	}
	return result, nil
}

// SetWalkable sets one cell's walkability
func (s *navServiceImpl) SetWalkable(ctx context.Context, sessionID string, x, y int, walkable bool) (*CellUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sess.ID)

	if err := sess.Engine.SetWalkable(x, y, walkable); err != nil {
		return nil, err
	}
	s.persist(sess.ID)

	return &CellUpdate{
		CellChange: engine.CellChange{X: x, Y: y, Walkable: walkable},
		State:      sess.Engine.GetState(),
	}, nil
}

// ToggleWalkable flips one cell's walkability
func (s *navServiceImpl) ToggleWalkable(ctx context.Context, sessionID string, x, y int) (*CellUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sess.ID)

	walkable, err := sess.Engine.ToggleWalkable(x, y)
	if err != nil {
		return nil, err
	}
	s.persist(sess.ID)

	return &CellUpdate{
		CellChange: engine.CellChange{X: x, Y: y, Walkable: walkable},
		State:      sess.Engine.GetState(),
	}, nil
}

// Reset restores a session's map to its original layout
func (s *navServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.MapState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sess.ID)

	state := sess.Engine.Reset()
	s.persist(sess.ID)
	if s.notifier != nil {
		s.notifier.StateChanged(sess.ID, state)
	}
	return state, nil
}

// GetMapState returns the current map state
func (s *navServiceImpl) GetMapState(ctx context.Context, sessionID string) (*engine.MapState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetState(), nil
}

// GetQueryHistory returns paginated query history
func (s *navServiceImpl) GetQueryHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return paginate(sess.Engine.GetQueryHistory(), opts), nil
}

// paginate slices history into one page, newest first unless Order is "asc"
func paginate(history []engine.QueryHistoryEntry, opts HistoryOptions) *HistoryResponse {
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	if opts.Limit > maxHistoryLimit {
		opts.Limit = maxHistoryLimit
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	queries := []engine.QueryHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			for i := total - 1 - start; i >= total-end; i-- {
				queries = append(queries, history[i])
			}
		} else {
			queries = append(queries, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Queries:      queries,
		TotalQueries: total,
		Page:         opts.Page,
		PageSize:     opts.Limit,
		TotalPages:   totalPages,
		HasNext:      opts.Page < totalPages,
		HasPrevious:  opts.Page > 1,
	}
}

// Locate maps a world position onto the session's grid and describes its neighborhood
func (s *navServiceImpl) Locate(ctx context.Context, sessionID string, world grid.Vec2) (*LocateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	result := &LocateResult{Location: sess.Engine.Locate(world)}
	if result.InBounds {
		result.Neighbors, err = sess.Engine.Neighborhood(result.X, result.Y)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ListMaps returns available map files
func (s *navServiceImpl) ListMaps(ctx context.Context) ([]*MapInfo, error) {
	return s.maps.ListMaps()
}

// LoadMap loads a map by ID
func (s *navServiceImpl) LoadMap(ctx context.Context, mapID string) (*engine.MapConfig, error) {
	return s.maps.LoadMap(mapID)
}

// SaveMap validates and saves a map
func (s *navServiceImpl) SaveMap(ctx context.Context, mapID string, config *engine.MapConfig) error {
	if err := engine.ValidateMapConfig(config); err != nil {
		return err
	}
	return s.maps.SaveMap(mapID, config)
}
