package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/huddle/pkg/session"
)

// Config holds configuration for the rendezvous server.
type Config struct {
	// Address is the address to listen on (e.g., ":4461").
	// Default: ":4461".
	Address string

	// Type is the transport type tag served under /ws/{type}.
	// Default: "socket".
	Type string

	// Authorizer accepts or rejects joining clients. Nil accepts everyone.
	Authorizer session.Authorizer

	// UnreliableQueueLimit bounds consumer queues on unreliable channels.
	// Default: 256.
	UnreliableQueueLimit int

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: allows all origins.
	CheckOrigin func(r *http.Request) bool

	// Timeouts

	// HandshakeTimeout is the maximum time to wait for the ClientHello.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// ReadTimeout is the maximum time to wait for a frame from the client.
	// Must exceed the client's heartbeat interval.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the time between server pings.
	// Default: 20 seconds.
	HeartbeatInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Limits

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 4MB.
	MaxMessageSize int64

	// Middleware wraps every request handled by the server.
	Middleware []RequestMiddleware

	// Registry receives the server's Prometheus collectors and backs
	// GET /metrics. Default: a new registry per server.
	Registry *prometheus.Registry

	// Logger is the parent logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Address:              ":4461",
		Type:                 "socket",
		UnreliableQueueLimit: 256,
		ReadBufferSize:       4096,
		WriteBufferSize:      4096,
		CheckOrigin:          func(r *http.Request) bool { return true },
		HandshakeTimeout:     10 * time.Second,
		ReadTimeout:          60 * time.Second,
		WriteTimeout:         10 * time.Second,
		HeartbeatInterval:    20 * time.Second,
		ShutdownTimeout:      30 * time.Second,
		MaxMessageSize:       4 * 1024 * 1024,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.Type == "" {
		c.Type = d.Type
	}
	if c.UnreliableQueueLimit <= 0 {
		c.UnreliableQueueLimit = d.UnreliableQueueLimit
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = d.CheckOrigin
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.HeartbeatInterval > 0 && c.ReadTimeout > 0 && c.HeartbeatInterval >= c.ReadTimeout {
		errs = append(errs, errors.New("server: HeartbeatInterval must be less than ReadTimeout"))
	}
	if c.MaxMessageSize < 0 {
		errs = append(errs, errors.New("server: MaxMessageSize must not be negative"))
	}
	return errors.Join(errs...)
}
