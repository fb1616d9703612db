package dispatch

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrClosed is returned by Pop once a closed queue has been drained.
var ErrClosed = errors.New("dispatch: queue closed")

// Lane is the priority class of a queued item.
type Lane uint8

const (
	LaneNormal Lane = iota
	LaneHigh
)

// String returns the string representation of the lane.
func (l Lane) String() string {
	if l == LaneHigh {
		return "high"
	}
	return "normal"
}

// Item is one queued value with its routing attributes.
type Item[T any] struct {
	Value T
	Lane  Lane
	Group string // Ordering group, e.g. the sender name
	Key   string // Coalescing key, empty for none
}

// Options configures a Queue.
type Options struct {
	// Limit bounds the number of pending items. When full, Push drops the
	// oldest normal item (or the oldest item when only high items remain).
	// Zero means unbounded.
	Limit int

	// Ordered keeps a group's items in push order across lanes.
	Ordered bool
}

// Queue is a FIFO with two priority lanes and optional coalescing.
// It supports any number of producers and a single consumer.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []Item[T]
	opts    Options
	closed  bool
	dropped uint64

	ready chan struct{}
	done  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any](opts Options) *Queue[T] {
	return &Queue[T]{
		opts:  opts,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push enqueues an item. It returns false if the queue is closed.
func (q *Queue[T]) Push(it Item[T]) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	// A newer keyed item replaces the pending one and takes its own place in
	// line, so it never overtakes items pushed before it.
	replaced := false
	if it.Key != "" {
		if i := slices.IndexFunc(q.items, func(p Item[T]) bool { return p.Key == it.Key }); i >= 0 {
			q.items = slices.Delete(q.items, i, i+1)
			replaced = true
		}
	}

	if !replaced && q.opts.Limit > 0 && len(q.items) >= q.opts.Limit {
		q.dropOldestLocked()
	}
	q.items = slices.Insert(q.items, q.insertPosLocked(it), it)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// insertPosLocked returns where it belongs: normal items go to the tail,
// high items go behind the last high item and, when ordered, behind the last
// item of their own group.
func (q *Queue[T]) insertPosLocked(it Item[T]) int {
	if it.Lane != LaneHigh {
		return len(q.items)
	}
	pos := 0
	for i := len(q.items) - 1; i >= 0; i-- {
		if q.items[i].Lane == LaneHigh {
			pos = i + 1
			break
		}
	}
	if q.opts.Ordered && it.Group != "" {
		for i := len(q.items) - 1; i >= pos; i-- {
			if q.items[i].Group == it.Group {
				pos = i + 1
				break
			}
		}
	}
	return pos
}

func (q *Queue[T]) dropOldestLocked() {
	idx := 0
	for i := range q.items {
		if q.items[i].Lane == LaneNormal {
			idx = i
			break
		}
	}
	q.items = slices.Delete(q.items, idx, idx+1)
	q.dropped++
}

// Pop removes and returns the head item, blocking until one is available.
// After Close, remaining items are still returned; ErrClosed follows once
// the queue is empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items[0] = Item[T]{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return it.Value, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.ready:
		case <-q.done:
		}
	}
}

// Close stops accepting items. Pending items remain poppable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

// Discard closes the queue and drops every pending item.
func (q *Queue[T]) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items a bounded queue has discarded.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Closed reports whether Close or Discard has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
