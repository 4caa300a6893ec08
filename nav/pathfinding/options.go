package pathfinding

import (
	"fmt"
	"strings"

	"github.com/wricardo/gridpath/nav/grid"
)

// DefaultCellSize is the world-space size of one cell unless WithCellSize is given.
const DefaultCellSize = 10.0

// CornerPolicy decides whether a diagonal step may pass between blocked cells.
type CornerPolicy int

const (
	// CornerCutAllow permits every diagonal step.
	CornerCutAllow CornerPolicy = iota
	// CornerCutNoSqueeze forbids a diagonal step when both flanking cells are blocked.
	CornerCutNoSqueeze
	// CornerCutNever forbids a diagonal step when either flanking cell is blocked.
	CornerCutNever
)

var cornerPolicyNames = map[CornerPolicy]string{
	CornerCutAllow:     "allow",
	CornerCutNoSqueeze: "no_squeeze",
	CornerCutNever:     "never",
}

func (c CornerPolicy) String() string {
	if name, ok := cornerPolicyNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CornerPolicy(%d)", int(c))
}

// ParseCornerPolicy maps a policy name to its value. The empty string means CornerCutAllow.
func ParseCornerPolicy(name string) (CornerPolicy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return CornerCutAllow, nil
	}
	for policy, n := range cornerPolicyNames {
		if n == name {
			return policy, nil
		}
	}
	return CornerCutAllow, fmt.Errorf("%w: %q", ErrUnknownCornerPolicy, name)
}

// allows reports whether stepping from cur to nb is permitted
func (c CornerPolicy) allows(g *grid.Grid[*PathNode], cur, nb *PathNode) bool {
	if c == CornerCutAllow || cur.X == nb.X || cur.Y == nb.Y {
		return true
	}
	a, _ := g.Get(nb.X, cur.Y)
	b, _ := g.Get(cur.X, nb.Y)
	blockedA := a == nil || !a.Walkable
	blockedB := b == nil || !b.Walkable

	switch c {
	case CornerCutNoSqueeze:
		return !(blockedA && blockedB)
	case CornerCutNever:
		return !blockedA && !blockedB
	}
	return true
}

type settings struct {
	cellSize      float64
	origin        grid.Vec2
	corners       CornerPolicy
	maxExpansions int
}

// Option configures a Pathfinder at construction
type Option func(*settings)

// WithCellSize sets the world-space size of one cell
func WithCellSize(size float64) Option {
	return func(s *settings) { s.cellSize = size }
}

// WithOrigin sets the world position of cell (0, 0)
func WithOrigin(origin grid.Vec2) Option {
	return func(s *settings) { s.origin = origin }
}

// WithCornerPolicy sets the default corner-cutting rule
func WithCornerPolicy(policy CornerPolicy) Option {
	return func(s *settings) { s.corners = policy }
}

// WithMaxExpansions caps the number of nodes a search may expand. Zero means unlimited.
func WithMaxExpansions(n int) Option {
	return func(s *settings) { s.maxExpansions = n }
}

type searchConfig struct {
	corners       CornerPolicy
	maxExpansions int
	observer      Observer
}

// SearchOption configures a single search
type SearchOption func(*searchConfig)

// WithObserver attaches an observer to one search
func WithObserver(o Observer) SearchOption {
	return func(c *searchConfig) { c.observer = o }
}

// WithCorners overrides the Pathfinder's corner policy for one search
func WithCorners(policy CornerPolicy) SearchOption {
	return func(c *searchConfig) { c.corners = policy }
}

// WithExpansionLimit overrides the Pathfinder's expansion limit for one search
func WithExpansionLimit(n int) SearchOption {
	return func(c *searchConfig) { c.maxExpansions = n }
}
