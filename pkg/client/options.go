package client

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/huddle/pkg/session"
)

// Options configures a remote session connection.
type Options struct {
	// ConnectTimeout bounds dialing and the handshake.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout bounds each request when the caller's context has no
	// deadline. Default: 30 seconds.
	RequestTimeout time.Duration

	// HeartbeatInterval is the time between client pings.
	// Default: 20 seconds.
	HeartbeatInterval time.Duration

	// ReadTimeout is the maximum silence tolerated from the server.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// MaxNameAttempts caps CreateOrJoinUnique.
	// Default: session.MaxNameAttempts.
	MaxNameAttempts int

	// Dialer dials the WebSocket. Default: websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger is the parent logger. Default: slog.Default().
	Logger *slog.Logger
}

// Option configures Options.
type Option func(*Options)

// WithConnectTimeout sets the connect and handshake timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = d
	}
}

// WithRequestTimeout sets the default per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = d
	}
}

// WithHeartbeatInterval sets the ping interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *Options) {
		o.HeartbeatInterval = d
	}
}

// WithMaxNameAttempts sets how many names CreateOrJoinUnique tries.
func WithMaxNameAttempts(n int) Option {
	return func(o *Options) {
		o.MaxNameAttempts = n
	}
}

// WithDialer sets the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *Options) {
		o.Dialer = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func defaultOptions() Options {
	return Options{
		ConnectTimeout:    10 * time.Second,
		RequestTimeout:    30 * time.Second,
		HeartbeatInterval: 20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxNameAttempts:   session.MaxNameAttempts,
		Dialer:            websocket.DefaultDialer,
		Logger:            slog.Default(),
	}
}

func buildOptions(opts []Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	d := defaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = d.HeartbeatInterval
	}
	if o.Dialer == nil {
		o.Dialer = d.Dialer
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}
