// Package config provides map file management for the gridpath server.
//
// The config package handles:
//   - Loading map files in JSON or YAML from a maps directory
//   - Map validation through the engine package
//   - Default map selection
//   - Map discovery, listing and saving
//
// Map Format:
//
// A map file names the map, gives its dimensions and lists layout rows of
// '.', '#', 'S' and 'G' characters. Optional fields set the cell size, world
// origin, corner policy and expansion limit:
//
//	name: Maze
//	description: Small maze
//	width: 5
//	height: 3
//	corner_policy: no_squeeze
//	layout:
//	  - "S.#.."
//	  - ".##.#"
//	  - "...#G"
//
// The map ID is the file name without extension. When both maze.json and
// maze.yaml exist, maze.json wins.
//
// Usage:
//
//	manager, err := config.NewManager("maps", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	maze, err := manager.LoadMap("maze")
//	maps, err := manager.ListMaps()
package config
