// Package websocket provides WebSocket transport for the gridpath server.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - Live broadcasting of map changes and search progress
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a read and a
// write goroutine. Every broadcast goes through the hub's event loop.
//
// Message Protocol:
//
// Outgoing messages are JSON objects {session_id, event, state, data}:
//   - state_update: full MapState after a reset
//   - cell_changed: {x, y, walkable} after a walkability edit
//   - search_step: one search Snapshot, only for streamed queries
//   - path_found: summary of a finished path query
//
// Clients select their session with ?session=abc1 when connecting. Messages
// are delivered only to clients of the same session.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run(ctx)
//
//	navService := service.NewNavService(sessions, maps, logger, service.WithNotifier(hub))
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
