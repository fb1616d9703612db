package dispatch

import (
	"context"
	"sync"
)

// Latest holds the most recent value of T with a version that increments on
// every Set. The zero value is ready to use.
type Latest[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
	changed chan struct{}
}

// Set stores v and wakes every waiter. It returns the new version.
func (l *Latest[T]) Set(v T) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.version++
	if l.changed != nil {
		close(l.changed)
		l.changed = nil
	}
	return l.version
}

// Load returns the current value and version. Version 0 means never set.
func (l *Latest[T]) Load() (T, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.version
}

// Wait blocks until the version is greater than after, then returns the
// current value and version.
func (l *Latest[T]) Wait(ctx context.Context, after uint64) (T, uint64, error) {
	for {
		l.mu.Lock()
		if l.version > after {
			v, ver := l.value, l.version
			l.mu.Unlock()
			return v, ver, nil
		}
		if l.changed == nil {
			l.changed = make(chan struct{})
		}
		ch := l.changed
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, after, ctx.Err()
		case <-ch:
		}
	}
}
