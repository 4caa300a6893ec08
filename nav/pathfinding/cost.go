package pathfinding

import "math"

const (
	// StraightCost is the cost of a horizontal or vertical step.
	StraightCost = 10
	// DiagonalCost is the cost of a diagonal step.
	DiagonalCost = 14

	// Unreached is the gCost of a node no search has reached yet.
	Unreached = math.MaxInt
)

// OctileDistance returns the 8-directional distance between two cells.
func OctileDistance(ax, ay, bx, by int) int {
	dx := abs(ax - bx)
	dy := abs(ay - by)
	lo, hi := dx, dy
	if lo > hi {
		lo, hi = hi, lo
	}
	return DiagonalCost*lo + StraightCost*(hi-lo)
}

// addCost adds two costs, saturating at Unreached
func addCost(a, b int) int {
	if a >= Unreached-b {
		return Unreached
	}
	return a + b
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
