// Package middleware provides observability middleware for the huddle
// server's request pipeline.
//
// # OpenTelemetry
//
// OpenTelemetry traces every request a connection sends. Spans are named
// after the op ("huddle.Send", "huddle.SetValue") and carry the session,
// client and target:
//
//	cfg := server.DefaultConfig()
//	cfg.Middleware = append(cfg.Middleware,
//		middleware.OpenTelemetry(middleware.WithTracerName("stockd")))
//
// # Prometheus
//
// Prometheus counts requests by op and status, failed requests by wire
// error code, and payload bytes, and observes handling time:
//
//	cfg.Middleware = append(cfg.Middleware,
//		middleware.Prometheus(middleware.WithRegistry(cfg.Registry)))
//
// The server's /metrics route serves whatever cfg.Registry holds.
//
// # Context Propagation
//
// OpenTelemetry replaces ctx.StdContext() with the span context, so the
// handler and any middleware registered after it inherit the trace.
package middleware
