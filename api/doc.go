// Package api provides the HTTP REST API for grid path sessions.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"map_id": "maze"}, empty for the default map)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Map operations:
//   - GET /api/sessions/{id}/state - Rendered map state
//   - POST /api/sessions/{id}/path - Run a path query
//   - POST /api/sessions/{id}/walkable - Set a cell's walkability
//   - POST /api/sessions/{id}/toggle - Flip a cell's walkability
//   - POST /api/sessions/{id}/reset - Restore the map layout
//   - GET /api/sessions/{id}/history - Paginated query history (?page=&limit=&order=)
//   - GET /api/sessions/{id}/locate?wx=&wy= - Map a world position onto the grid
//
// Maps:
//   - GET /api/maps - List map files
//   - POST /api/maps - Save a map (?id= overrides the ID derived from its name)
//   - GET /api/maps/{name} - Get a map
//
// Other:
//   - GET /ws?session=<id> - WebSocket event stream
//   - GET /metrics - Prometheus metrics
//   - GET /healthz - Health check
//
// A path request body looks like:
//
//	{
//	  "from": {"x": 0, "y": 0},   // optional, defaults to the map's S
//	  "to": {"x": 9, "y": 9},     // optional, defaults to the map's G
//	  "trace": true,              // record a snapshot per search step
//	  "max_snapshots": 500,
//	  "max_expansions": 1000,
//	  "stream": true              // push search_step events over /ws
//	}
//
// An unreachable goal is not an error: the response has "found": false and
// "outcome": "no_path" or "limit".
//
// Errors are returned as JSON with 400 for bad input, 404 for unknown
// sessions or maps and 500 otherwise:
//
//	{"error": "session not found"}
package api
