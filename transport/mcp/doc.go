// Package mcp exposes grid path sessions as Model Context Protocol tools.
//
// The client is a thin proxy: every tool call is translated into a REST
// request against the api package and the JSON response is rendered as text
// for the agent.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - map_state: rendered rows with S, G and blocked cells
//   - find_path: A* query, defaults to the map's S and G
//   - set_walkable, toggle_cell, reset_map
//   - query_history: paginated past queries
//   - list_maps
//   - describe_cell: one cell, its world-space center and its neighbors
//
// Transports:
//
//	// Stdio
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP
//	mux.Handle("/mcp", client.HTTPHandler())
package mcp
