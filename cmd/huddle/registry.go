package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/huddle/internal/errors"
	"github.com/vango-dev/huddle/pkg/auth"
	"github.com/vango-dev/huddle/pkg/middleware"
	"github.com/vango-dev/huddle/pkg/registry"
	"github.com/vango-dev/huddle/pkg/server"
)

func registryCmd(a *app) *cobra.Command {
	var (
		metrics  bool
		tracing  bool
		redisURL string
	)

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Run the rendezvous endpoint",
		Long: `Run the rendezvous endpoint for the configured session type.

Clients connect to it to create and join sessions. If an endpoint for
the type is already answering at the registered address, the command
reports it and exits.

The endpoint also serves:
  GET /healthz      liveness
  GET /sessions     sessions, members, channels and byte arrays
  GET /metrics      Prometheus metrics

Examples:
  huddle registry
  huddle registry --port=4466 --metrics
  huddle registry --redis-url=redis://localhost:6379/0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("metrics") {
				a.cfg.Registry.Metrics = metrics
			}
			if cmd.Flags().Changed("tracing") {
				a.cfg.Registry.Tracing = tracing
			}
			if cmd.Flags().Changed("redis-url") {
				a.cfg.Registry.RedisURL = redisURL
			}
			return runRegistry(a)
		},
	}

	cmd.Flags().BoolVar(&metrics, "metrics", false, "Record per-request Prometheus metrics")
	cmd.Flags().BoolVar(&tracing, "tracing", false, "Record per-request OpenTelemetry spans")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "Share the endpoint directory through Redis")

	return cmd
}

// endpointConfig builds the server template for the registry from cfg.
func endpointConfig(a *app) server.Config {
	cfg := a.cfg
	tmpl := server.Config{
		UnreliableQueueLimit: cfg.Registry.UnreliableQueueLimit,
		Registry:             prometheus.NewRegistry(),
		Logger:               a.logger,
	}
	if cfg.Registry.Metrics {
		tmpl.Middleware = append(tmpl.Middleware, middleware.Prometheus(middleware.WithRegistry(tmpl.Registry)))
	}
	if cfg.Registry.Tracing {
		tmpl.Middleware = append(tmpl.Middleware, middleware.OpenTelemetry())
	}
	if cfg.Auth.Secret != "" {
		tmpl.Authorizer = auth.NewJWTAuthorizer([]byte(cfg.Auth.Secret))
	}
	return tmpl
}

func directory(ctx context.Context, a *app) (registry.Directory, error) {
	if a.cfg.Registry.RedisURL == "" {
		return registry.SharedMemoryDirectory(), nil
	}
	rdb, err := registry.DialRedis(ctx, registry.RedisConfig{
		URL:         a.cfg.Registry.RedisURL,
		DialTimeout: a.cfg.ConnectTimeout(),
	})
	if err != nil {
		return nil, errors.New("H301").Wrap(err)
	}
	return registry.NewRedisDirectory(rdb), nil
}

func runRegistry(a *app) error {
	ctx, stop := signalContext()
	defer stop()

	dir, err := directory(ctx, a)
	if err != nil {
		return err
	}
	reg := registry.New(registry.Config{
		Address:       a.cfg.BindAddress(),
		AdvertiseHost: a.cfg.Registry.AdvertiseHost,
		Directory:     dir,
		TTL:           a.cfg.RegistryTTL(),
		Server:        endpointConfig(a),
		Logger:        a.logger,
	})

	typ := a.cfg.Type
	if reg.Exists(ctx, typ) {
		addr, _ := reg.Lookup(ctx, typ)
		info("A %s endpoint is already running at %s", typ, addr)
		return nil
	}

	printBanner()
	if err := reg.Start(ctx, typ); err != nil {
		return err
	}
	addr, _ := reg.Lookup(ctx, typ)
	success("Registry for %q listening on %s", typ, addr)
	info("Config: %s", a.configSource())
	info("Sessions: huddle://%s/%s/Session/<name>", addr, typ)
	if a.cfg.Auth.Secret != "" {
		info("Clients must present a token (huddle token <name>)")
	}
	fmt.Println()

	<-ctx.Done()
	fmt.Println("\n  Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return reg.Stop(shutdownCtx)
}
