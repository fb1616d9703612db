// Package server hosts sessions for remote clients.
//
// A Server owns one session.Manager for its transport type and serves it
// over WebSocket. Each connection starts with a handshake that joins the
// client to a session; afterwards the client issues requests (create
// channels and byte arrays, send, set values, register listeners) and the
// server pushes events for every registration the connection holds.
//
// # Routes
//
//	GET /healthz      liveness probe
//	GET /metrics      Prometheus metrics
//	GET /sessions     JSON snapshot of hosted sessions
//	GET /ws/{type}    WebSocket endpoint
//
// # Connection Lifecycle
//
// Each connection runs two goroutines:
//   - ReadLoop: Receives frames, answers requests in arrival order, handles control
//   - WriteLoop: Drains the outbound queue and sends heartbeat pings
//
// Requests from one connection are handled sequentially, so sends from one
// client reach the core in the order the client issued them. Events are
// queued per connection; byte array value events coalesce so a slow client
// sees the newest value instead of a backlog.
//
// When the connection closes the client leaves its session and every
// registration it made is removed.
//
// # Example Usage
//
//	srv := server.New(server.Config{Address: ":4461"})
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
