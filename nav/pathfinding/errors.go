package pathfinding

import "errors"

var (
	// ErrNoPath is returned when an endpoint is out of range or no route exists.
	ErrNoPath = errors.New("pathfinding: no path")

	// ErrSearchLimit is returned when a search exceeds its expansion limit.
	ErrSearchLimit = errors.New("pathfinding: expansion limit reached")

	// ErrBrokenPath is returned when back-references do not lead from the goal to the start.
	ErrBrokenPath = errors.New("pathfinding: broken back-reference chain")

	// ErrUnknownCornerPolicy is returned by ParseCornerPolicy for unrecognized names.
	ErrUnknownCornerPolicy = errors.New("pathfinding: unknown corner policy")
)
