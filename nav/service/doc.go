// Package service provides the business logic layer for the gridpath map server.
//
// The service package implements:
//   - Multi-session map management
//   - Path queries with metrics and tracing
//   - Walkability edits and reset
//   - Paginated query history
//   - Map file listing, loading and saving
//
// Core Interfaces:
//
// NavService is the main service interface providing high-level operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// MapManager manages map file loading and validation.
// Notifier receives live events (cell changes, search steps, found paths)
// and is implemented by the websocket hub.
//
// Architecture:
//
// The service layer sits between the transports (HTTP/WebSocket/MCP) and the
// map engine. Each session owns its own engine and pathfinder, so queries and
// edits in one session never affect another.
//
// Usage:
//
//	sessionMgr := session.NewManager(logger)
//	mapMgr := config.NewManager("maps", logger)
//	navService := service.NewNavService(sessionMgr, mapMgr, logger)
//
//	info, err := navService.CreateSession(ctx, "maze")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := navService.FindPath(ctx, info.ID, service.PathRequest{})
package service
