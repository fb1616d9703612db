package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

// recorder collects values delivered by a listener or consumer.
type recorder[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{notify: make(chan struct{}, 1)}
}

func (r *recorder[T]) record(v T) {
	r.mu.Lock()
	r.items = append(r.items, v)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// waitFor blocks until cond holds for the recorded items.
func (r *recorder[T]) waitFor(t *testing.T, what string, cond func([]T) bool) []T {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		items := r.snapshot()
		if cond(items) {
			return items
		}
		select {
		case <-r.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %s; got %d items: %+v", what, len(items), items)
		}
	}
}

func (r *recorder[T]) waitLen(t *testing.T, n int) []T {
	t.Helper()
	return r.waitFor(t, "items", func(items []T) bool { return len(items) >= n })
}

func newTestManager() *Manager {
	return NewManager(DefaultManagerConfig())
}

func mustJoin(t *testing.T, m *Manager, name, sessionName string, create bool) (*Session, Client) {
	t.Helper()
	c := NewClient(name)
	s, err := m.CreateOrJoin(context.Background(), c, sessionName, create)
	if err != nil {
		t.Fatalf("CreateOrJoin(%q) error = %v", name, err)
	}
	return s, c
}
