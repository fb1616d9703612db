package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/vango-dev/huddle/pkg/session"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestRegistry(t *testing.T, dir Directory) *Registry {
	t.Helper()
	r := New(Config{
		Address:       "127.0.0.1:0",
		AdvertiseHost: "127.0.0.1",
		Directory:     dir,
		Logger:        quiet,
	})
	t.Cleanup(func() { r.Stop(context.Background()) })
	return r
}

func TestStartExistsStop(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	r := newTestRegistry(t, dir)

	if r.Exists(ctx, "socket") {
		t.Fatal("Exists() before Start")
	}
	if err := r.Start(ctx, "socket"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(ctx, "socket"); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !r.Exists(ctx, "socket") {
		t.Fatal("Exists() = false after Start")
	}

	addr, err := r.Lookup(ctx, "socket")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got, _ := dir.Lookup(ctx, "socket"); got != addr {
		t.Errorf("directory has %q, registry reports %q", got, addr)
	}
	if srv, ok := r.Server("socket"); !ok || srv.Manager() == nil {
		t.Error("Server() missing after Start")
	}

	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if r.Exists(ctx, "socket") {
		t.Error("Exists() after Stop")
	}
	if _, err := dir.Lookup(ctx, "socket"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("directory entry survived Stop: %v", err)
	}
}

func TestExistsAcrossRegistries(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	owner := newTestRegistry(t, dir)
	other := newTestRegistry(t, dir)

	if err := owner.Start(ctx, "socket"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !other.Exists(ctx, "socket") {
		t.Fatal("other registry cannot see the running endpoint")
	}
	// Start on the other registry finds the live endpoint and does nothing.
	if err := other.Start(ctx, "socket"); err != nil {
		t.Fatalf("other Start() error = %v", err)
	}
	if _, ok := other.Server("socket"); ok {
		t.Error("other registry started a second endpoint")
	}
}

func TestExistsStaleEntry(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()

	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := ln.Addr().String()
	ln.Close()
	dir.Register(ctx, "socket", addr, time.Minute)

	r := newTestRegistry(t, dir)
	if r.Exists(ctx, "socket") {
		t.Error("Exists() trusted an entry nobody answers at")
	}
}

func TestStartErrors(t *testing.T) {
	ctx := context.Background()

	r := newTestRegistry(t, NewMemoryDirectory())
	err := r.Start(ctx, "http")
	if !errors.Is(err, ErrUnsupportedTransport) || !errors.Is(err, session.ErrRegistry) {
		t.Errorf("Start(http) error = %v, want ErrUnsupportedTransport and ErrRegistry", err)
	}

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	blocked := New(Config{Address: busy.Addr().String(), Directory: NewMemoryDirectory(), Logger: quiet})
	err = blocked.Start(ctx, "socket")
	var re *session.RegistryError
	if !errors.As(err, &re) || re.Addr != busy.Addr().String() {
		t.Fatalf("Start() on a busy port error = %v, want RegistryError", err)
	}
	if !errors.Is(err, session.ErrRegistry) {
		t.Errorf("error does not match ErrRegistry: %v", err)
	}
}

func TestMemoryDirectoryTTL(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDirectory()
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	d.Register(ctx, "socket", "a:1", 10*time.Second)
	if addr, err := d.Lookup(ctx, "socket"); err != nil || addr != "a:1" {
		t.Fatalf("Lookup() = %q, %v", addr, err)
	}

	d.Unregister(ctx, "socket", "b:2")
	if _, err := d.Lookup(ctx, "socket"); err != nil {
		t.Error("Unregister removed another address's entry")
	}

	now = now.Add(10 * time.Second)
	if _, err := d.Lookup(ctx, "socket"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expired Lookup() error = %v", err)
	}
}
