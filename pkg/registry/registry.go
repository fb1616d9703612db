// Package registry starts and locates rendezvous endpoints.
//
// A Registry runs at most one endpoint per session type and records its
// address in a Directory so other processes can find it:
//
//	if !registry.Exists(ctx, "socket") {
//		if err := registry.Start(ctx, "socket"); err != nil {
//			return err
//		}
//	}
//
// Only the "socket" transport type is supported.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vango-dev/huddle/pkg/naming"
	"github.com/vango-dev/huddle/pkg/server"
	"github.com/vango-dev/huddle/pkg/session"
)

// ErrUnsupportedTransport is returned for session types other than
// "socket".
var ErrUnsupportedTransport = naming.ErrUnsupportedType

// Config configures a Registry.
type Config struct {
	// Address is the address endpoints bind to.
	// Default: ":4461".
	Address string

	// AdvertiseHost is the host recorded in the Directory.
	// Default: "localhost".
	AdvertiseHost string

	// Directory records endpoint addresses.
	// Default: SharedMemoryDirectory().
	Directory Directory

	// TTL bounds how long a Directory entry outlives its registry.
	// Default: 30 seconds.
	TTL time.Duration

	// HealthTimeout bounds the /healthz probe made by Exists.
	// Default: 2 seconds.
	HealthTimeout time.Duration

	// Server is the template for started endpoints. Address and Type are
	// set by the registry.
	Server server.Config

	// Logger is the parent logger. Default: slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = fmt.Sprintf(":%d", naming.DefaultPort)
	}
	if c.AdvertiseHost == "" {
		c.AdvertiseHost = "localhost"
	}
	if c.Directory == nil {
		c.Directory = SharedMemoryDirectory()
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

type endpoint struct {
	srv  *server.Server
	addr string
	stop context.CancelFunc
	done chan struct{}
}

// Registry starts endpoints and answers where they are.
type Registry struct {
	config Config
	http   *http.Client
	logger *slog.Logger

	mu        sync.Mutex
	endpoints map[string]*endpoint
}

// New creates a Registry.
func New(config Config) *Registry {
	config = config.withDefaults()
	return &Registry{
		config:    config,
		http:      &http.Client{Timeout: config.HealthTimeout},
		logger:    config.Logger.With("component", "registry"),
		endpoints: make(map[string]*endpoint),
	}
}

// Start starts an endpoint for typ unless one is already running here or
// answering at the address the Directory records. Bind failures return a
// *session.RegistryError.
func (r *Registry) Start(ctx context.Context, typ string) error {
	if err := naming.CheckType(typ); err != nil {
		return &session.RegistryError{Type: typ, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.endpoints[typ]; ok {
		return nil
	}
	if addr, err := r.config.Directory.Lookup(ctx, typ); err == nil && r.healthy(ctx, addr) {
		r.logger.Debug("endpoint already running elsewhere", "type", typ, "addr", addr)
		return nil
	}

	cfg := r.config.Server
	cfg.Address = r.config.Address
	cfg.Type = typ
	if cfg.Logger == nil {
		cfg.Logger = r.config.Logger
	}
	srv := server.New(cfg)
	if err := srv.Listen(); err != nil {
		return &session.RegistryError{Type: typ, Addr: r.config.Address, Err: err}
	}

	_, port, err := net.SplitHostPort(srv.Addr())
	if err != nil {
		srv.Shutdown(ctx)
		return &session.RegistryError{Type: typ, Addr: srv.Addr(), Err: err}
	}
	addr := net.JoinHostPort(r.config.AdvertiseHost, port)
	if err := r.config.Directory.Register(ctx, typ, addr, r.config.TTL); err != nil {
		srv.Shutdown(ctx)
		return &session.RegistryError{Type: typ, Addr: addr, Err: err}
	}

	hbCtx, stop := context.WithCancel(context.Background())
	ep := &endpoint{srv: srv, addr: addr, stop: stop, done: make(chan struct{})}
	r.endpoints[typ] = ep
	go r.heartbeat(hbCtx, typ, ep)

	r.logger.Info("endpoint started", "type", typ, "addr", addr)
	return nil
}

// heartbeat keeps the Directory entry alive while the endpoint runs.
func (r *Registry) heartbeat(ctx context.Context, typ string, ep *endpoint) {
	defer close(ep.done)
	ticker := time.NewTicker(r.config.TTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.config.Directory.Register(ctx, typ, ep.addr, r.config.TTL); err != nil && ctx.Err() == nil {
				r.logger.Warn("registry refresh failed", "type", typ, "error", err)
			}
		}
	}
}

// Exists reports whether an endpoint for typ is running here, or is
// registered in the Directory and answering /healthz.
func (r *Registry) Exists(ctx context.Context, typ string) bool {
	r.mu.Lock()
	_, ok := r.endpoints[typ]
	r.mu.Unlock()
	if ok {
		return true
	}
	addr, err := r.config.Directory.Lookup(ctx, typ)
	if err != nil {
		return false
	}
	return r.healthy(ctx, addr)
}

// Lookup returns the address of the endpoint serving typ.
func (r *Registry) Lookup(ctx context.Context, typ string) (string, error) {
	r.mu.Lock()
	ep, ok := r.endpoints[typ]
	r.mu.Unlock()
	if ok {
		return ep.addr, nil
	}
	addr, err := r.config.Directory.Lookup(ctx, typ)
	if err != nil {
		return "", &session.RegistryError{Type: typ, Err: err}
	}
	return addr, nil
}

// Server returns the endpoint this registry started for typ.
func (r *Registry) Server(typ string) (*server.Server, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[typ]
	if !ok {
		return nil, false
	}
	return ep.srv, true
}

// Stop shuts down every endpoint this registry started and removes their
// Directory entries.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	endpoints := r.endpoints
	r.endpoints = make(map[string]*endpoint)
	r.mu.Unlock()

	var errs []error
	for typ, ep := range endpoints {
		ep.stop()
		<-ep.done
		if err := r.config.Directory.Unregister(ctx, typ, ep.addr); err != nil {
			errs = append(errs, &session.RegistryError{Type: typ, Addr: ep.addr, Err: err})
		}
		if err := ep.srv.Shutdown(ctx); err != nil {
			errs = append(errs, &session.RegistryError{Type: typ, Addr: ep.addr, Err: err})
		}
		r.logger.Info("endpoint stopped", "type", typ, "addr", ep.addr)
	}
	return errors.Join(errs...)
}

func (r *Registry) healthy(ctx context.Context, addr string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = New(Config{})
	})
	return defaultRegistry
}

// Exists calls Default().Exists.
func Exists(ctx context.Context, typ string) bool {
	return Default().Exists(ctx, typ)
}

// Start calls Default().Start.
func Start(ctx context.Context, typ string) error {
	return Default().Start(ctx, typ)
}

// Stop calls Default().Stop.
func Stop(ctx context.Context) error {
	return Default().Stop(ctx)
}

// Lookup calls Default().Lookup.
func Lookup(ctx context.Context, typ string) (string, error) {
	return Default().Lookup(ctx, typ)
}
