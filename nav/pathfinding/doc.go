// Package pathfinding implements A* search over a grid of PathNodes.
//
// A Pathfinder owns a grid.Grid[*PathNode]. Every node starts walkable;
// callers toggle walkability through SetWalkable and query routes with
// FindPath or Search. Each search is self-contained: all scratch state
// (gCost, hCost, fCost, back-references) is reset at the start of the call,
// so walkability is the only thing carried between searches.
//
// Cost Model:
//
// Movement is 8-directional. Straight steps cost 10 and diagonal steps cost
// 14. The octile distance
//
//	14*min(dx, dy) + 10*(max(dx, dy) - min(dx, dy))
//
// serves both as the heuristic and as the true cost between adjacent cells.
//
// Determinism:
//
// The open list is kept in insertion order and the next node to expand is
// the first one holding the minimum fCost. Neighbors are visited in the
// fixed order left, left-down, left-up, right, right-down, right-up, down,
// up. Identical grids and endpoints therefore always produce identical
// paths.
//
// Corner Cutting:
//
// By default a diagonal step is allowed even when both orthogonal cells
// flanking it are blocked. WithCornerPolicy selects a stricter rule.
//
// Observation:
//
// An Observer passed with WithObserver receives the live SearchState after
// initialization and after every neighbor evaluation, and once more when
// the search finishes. Recorder collects immutable Snapshots for playback.
//
// A Pathfinder is not safe for concurrent use. Searches must not interleave
// with SetWalkable calls from other goroutines.
package pathfinding
