// Package grid provides a fixed-size 2D container addressed by integer cell
// coordinates.
//
// A Grid maps every (x, y) with 0 <= x < width and 0 <= y < height to exactly
// one payload of type T. Payloads are produced once per cell by a factory at
// construction time; cells are never added or removed afterwards, only
// replaced or mutated in place.
//
// Coordinate Transforms:
//
// Each grid carries a cell size and an origin so that callers working in a
// continuous space (screen pixels, world units) can convert between world
// positions and cell indices:
//
//	x, y := g.WorldToGrid(grid.Vec2{X: 37, Y: 12}) // floor((p - origin) / cellSize)
//	p := g.GridToWorld(3, 1)                      // origin + (x, y) * cellSize
//
// WorldToGrid may return out-of-range coordinates; Get and Set treat those
// as "no value" and no-op respectively.
//
// Change Notification:
//
// Set and NotifyChanged deliver the mutated cell coordinates to every
// subscriber synchronously, in subscription order. Handlers that mutate the
// grid re-enter the notification path; nothing guards against that.
//
// A Grid is not safe for concurrent use.
package grid
