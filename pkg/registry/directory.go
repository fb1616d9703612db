package registry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotRegistered is returned by Lookup when no endpoint is registered for
// a type.
var ErrNotRegistered = errors.New("registry: no endpoint registered")

// Directory records which address serves each session type. Entries carry a
// TTL; a registry refreshes its own entries while it runs.
type Directory interface {
	// Register records addr for typ, replacing any previous entry.
	Register(ctx context.Context, typ, addr string, ttl time.Duration) error

	// Lookup returns the address registered for typ.
	Lookup(ctx context.Context, typ string) (string, error)

	// Unregister removes the entry for typ if it still names addr.
	Unregister(ctx context.Context, typ, addr string) error
}

type memoryEntry struct {
	addr    string
	expires time.Time // zero for no expiry
}

// MemoryDirectory is an in-process Directory. Registries in one process
// share it by default.
type MemoryDirectory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryDirectory returns an empty MemoryDirectory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

var (
	sharedDirectory     *MemoryDirectory
	sharedDirectoryOnce sync.Once
)

// SharedMemoryDirectory returns the process-wide MemoryDirectory.
func SharedMemoryDirectory() *MemoryDirectory {
	sharedDirectoryOnce.Do(func() {
		sharedDirectory = NewMemoryDirectory()
	})
	return sharedDirectory
}

// Register implements Directory.
func (d *MemoryDirectory) Register(_ context.Context, typ, addr string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := memoryEntry{addr: addr}
	if ttl > 0 {
		e.expires = d.now().Add(ttl)
	}
	d.entries[typ] = e
	return nil
}

// Lookup implements Directory.
func (d *MemoryDirectory) Lookup(_ context.Context, typ string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[typ]
	if !ok {
		return "", ErrNotRegistered
	}
	if !e.expires.IsZero() && !d.now().Before(e.expires) {
		delete(d.entries, typ)
		return "", ErrNotRegistered
	}
	return e.addr, nil
}

// Unregister implements Directory.
func (d *MemoryDirectory) Unregister(_ context.Context, typ, addr string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[typ]; ok && e.addr == addr {
		delete(d.entries, typ)
	}
	return nil
}
