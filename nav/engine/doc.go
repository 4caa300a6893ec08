// Package engine provides map-level pathfinding on top of the pathfinding core.
//
// The engine package implements:
//   - Map layouts loaded from JSON or YAML files and their validation
//   - A Pathfinder built from a layout, with walls applied
//   - Path queries with optional step tracing and a query history
//   - Walkability edits, reset to the original layout, and change subscriptions
//   - World-position lookup and ASCII rendering with a path overlay
//
// Core Types:
//
// The Engine interface defines the contract for map operations, implemented
// by MapEngine. MapConfig describes a map file; MapState is the externally
// visible state used by the service layer and persistence.
//
// Layout Format:
//
// Each layout row is a string of width characters, row i holding y == i:
//
//	.  walkable
//	#  blocked
//	S  walkable, default query start
//	G  walkable, default query goal
//
// Usage:
//
//	config, err := engine.LoadMapByName("maps", "maze")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	mapEngine, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := mapEngine.FindPath(nil, nil, engine.QueryOptions{})
//	fmt.Println(result.Found, result.Cost)
//	fmt.Println(strings.Join(result.Overlay, "\n"))
package engine
