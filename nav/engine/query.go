package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/gridpath/nav/pathfinding"
)

// FindPath runs a path query. A nil endpoint falls back to the layout's S or G marker.
//
// Search outcomes (no route, expansion limit) are reported in the result with
// Found == false and a nil error. Errors are returned for bad input and for
// internal failures.
func (e *MapEngine) FindPath(from, to *Point, opts QueryOptions) (*QueryResult, error) {
	start, goal := e.config.Markers()
	if from == nil {
		if start == nil {
			return nil, fmt.Errorf("%w: start (S)", ErrNoEndpoint)
		}
		from = start
	}
	if to == nil {
		if goal == nil {
			return nil, fmt.Errorf("%w: goal (G)", ErrNoEndpoint)
		}
		to = goal
	}

	g := e.pf.Grid()
	if !g.InBounds(from.X, from.Y) {
		return nil, fmt.Errorf("%w: start (%d,%d) on %dx%d map", ErrOutOfBounds, from.X, from.Y, g.Width(), g.Height())
	}
	if !g.InBounds(to.X, to.Y) {
		return nil, fmt.Errorf("%w: end (%d,%d) on %dx%d map", ErrOutOfBounds, to.X, to.Y, g.Width(), g.Height())
	}

	var searchOpts []pathfinding.SearchOption
	var recorder *pathfinding.Recorder
	var observers []pathfinding.Observer
	if opts.Trace {
		limit := opts.MaxSnapshots
		if limit <= 0 {
			limit = DefaultMaxSnapshots
		}
		recorder = pathfinding.NewRecorder(limit)
		observers = append(observers, recorder)
	}
	if opts.Observer != nil {
		observers = append(observers, opts.Observer)
	}
	switch len(observers) {
	case 0:
	case 1:
		searchOpts = append(searchOpts, pathfinding.WithObserver(observers[0]))
	default:
		searchOpts = append(searchOpts, pathfinding.WithObserver(multiObserver(observers)))
	}
	if opts.MaxExpansions > 0 {
		searchOpts = append(searchOpts, pathfinding.WithExpansionLimit(opts.MaxExpansions))
	}

	res, err := e.pf.Search(*from, *to, searchOpts...)

	result := &QueryResult{
		ID:       uuid.NewString(),
		From:     *from,
		To:       *to,
		Found:    res.Found,
		Path:     res.Path,
		Cost:     res.Cost,
		Expanded: res.Expanded,
	}
	if recorder != nil {
		result.Snapshots = recorder.Snapshots
		result.Truncated = recorder.Truncated
	}

	switch {
	case err == nil:
		result.Outcome = OutcomeFound
		e.lastPath = res.Path
		result.Overlay = e.Render(res.Path)
	case errors.Is(err, pathfinding.ErrNoPath):
		result.Outcome = OutcomeNoPath
		e.lastPath = nil
		result.Error = err.Error()
	case errors.Is(err, pathfinding.ErrSearchLimit):
		result.Outcome = OutcomeLimit
		e.lastPath = nil
		result.Error = err.Error()
	default:
		return nil, err
	}

	e.addQueryToHistory(result)
	return result, nil
}

// addQueryToHistory appends a query to the cumulative and current histories
func (e *MapEngine) addQueryToHistory(result *QueryResult) {
	entry := QueryHistoryEntry{
		ID:          result.ID,
		From:        result.From,
		To:          result.To,
		Found:       result.Found,
		Cost:        result.Cost,
		Expanded:    result.Expanded,
		PathLength:  len(result.Path),
		Error:       result.Error,
		Timestamp:   time.Now().Unix(),
		QueryNumber: e.totalQueries + 1,
	}
	e.history = append(e.history, entry)
	e.totalQueries++
	e.currentQueries = append(e.currentQueries, entry)
}

// GetQueryHistory returns the cumulative query history
func (e *MapEngine) GetQueryHistory() []QueryHistoryEntry {
	return e.history
}

// GetLastQuery returns the most recent query, or nil if none
func (e *MapEngine) GetLastQuery() *QueryHistoryEntry {
	if len(e.history) == 0 {
		return nil
	}
	return &e.history[len(e.history)-1]
}

// Render draws the map as layout rows with path cells marked '*'. S and G markers are kept.
func (e *MapEngine) Render(path pathfinding.Path) []string {
	w, h := e.pf.Width(), e.pf.Height()
	cells := make([][]byte, h)
	for y := range cells {
		cells[y] = make([]byte, w)
		for x := range cells[y] {
			if e.pf.IsWalkable(x, y) {
				cells[y][x] = CellOpen
			} else {
				cells[y][x] = CellBlocked
			}
		}
	}

	for _, pt := range path {
		if pt.Y >= 0 && pt.Y < h && pt.X >= 0 && pt.X < w {
			cells[pt.Y][pt.X] = CellPath
		}
	}

	start, goal := e.config.Markers()
	for _, m := range []struct {
		p    *Point
		char byte
	}{{start, CellStart}, {goal, CellGoal}} {
		if m.p != nil && cells[m.p.Y][m.p.X] != CellBlocked {
			cells[m.p.Y][m.p.X] = m.char
		}
	}

	rows := make([]string, h)
	for y := range cells {
		rows[y] = string(cells[y])
	}
	return rows
}

type multiObserver []pathfinding.Observer

func (m multiObserver) OnSearchStep(s *pathfinding.SearchState) {
	for _, o := range m {
		o.OnSearchStep(s)
	}
}

func (m multiObserver) OnSearchDone(s *pathfinding.SearchState, path pathfinding.Path) {
	for _, o := range m {
		o.OnSearchDone(s, path)
	}
}
