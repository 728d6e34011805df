// Package server orchestrates the cultural storyteller service components.
//
// # Overview
//
// The server package owns every long-lived component: the SQLite store, the
// generation provider, the view-deduplication window, the Prometheus registry
// and the web handler that serves both the HTML pages and the JSON API.
//
// # Endpoints
//
// Besides the routes registered by the web package, the server mounts:
//
//   - GET /health - Liveness check, always "OK"
//   - GET /health/ready - Readiness check, pings the database
//   - GET /metrics - Prometheus exposition (path configurable, may be disabled)
//
// # Lifecycle
//
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
//
// Run binds the listener, then runs the HTTP server and the expired-session
// sweep in one errgroup. When ctx is canceled the HTTP server drains within
// Server.ShutdownTimeout and the store is closed. Callers that never call Run
// must call Shutdown themselves.
package server
