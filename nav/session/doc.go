// Package session provides session management for the gridpath server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Session expiration and pruning
//   - Persistence to files, Redis or MongoDB
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. Lookups are
// case-insensitive. A session missing from memory is loaded from the
// configured persistence backend on first access.
//
// Persistence:
//
// A persisted session stores its map ID, timestamps and the engine's MapState
// (rendered rows carrying the current walls, plus query history). Loading
// rebuilds the engine from the map file and restores the state on top.
//
//	persistence, err := session.NewFilePersistence("sessions", mapManager)
//	manager := session.NewManagerWithPersistence(persistence, logger)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err := manager.Create("", "maze", config)
package session
