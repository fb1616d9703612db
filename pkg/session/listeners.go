package session

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/huddle/pkg/dispatch"
)

// subscriber is one listener with its own delivery queue and worker.
type subscriber[E any] struct {
	id     ListenerID
	client string // Owning client, empty for session-wide listeners
	queue  *dispatch.Queue[E]
}

// listenerSet holds the subscribers of one resource. It is guarded by the
// owning session's lock; pushing under that lock makes every subscriber see
// events in mutation order.
type listenerSet[E any] struct {
	subs []*subscriber[E]
}

// add registers fn with its own worker. workers counts the worker until it
// has delivered every event queued before its queue closed.
func (s *listenerSet[E]) add(client string, fn func(E), opts dispatch.Options, logger *slog.Logger, workers *sync.WaitGroup) ListenerID {
	sub := s.addQueue(client, opts)
	w := dispatch.Start(sub.queue, fn, logger)
	workers.Add(1)
	go func() {
		w.Wait()
		workers.Done()
	}()
	return sub.id
}

// addQueue registers a subscriber without a worker; the caller pops.
func (s *listenerSet[E]) addQueue(client string, opts dispatch.Options) *subscriber[E] {
	sub := &subscriber[E]{
		id:     nextListenerID(),
		client: client,
		queue:  dispatch.NewQueue[E](opts),
	}
	s.subs = append(s.subs, sub)
	return sub
}

// remove drops the subscriber and discards its pending events.
func (s *listenerSet[E]) remove(id ListenerID) (*subscriber[E], bool) {
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			sub.queue.Discard()
			return sub, true
		}
	}
	return nil, false
}

// removeClient drops every subscriber owned by client.
func (s *listenerSet[E]) removeClient(client string) []*subscriber[E] {
	var removed []*subscriber[E]
	kept := s.subs[:0]
	for _, sub := range s.subs {
		if sub.client == client {
			sub.queue.Discard()
			removed = append(removed, sub)
			continue
		}
		kept = append(kept, sub)
	}
	clear(s.subs[len(kept):])
	s.subs = kept
	return removed
}

func (s *listenerSet[E]) emit(e E) {
	for _, sub := range s.subs {
		sub.queue.Push(dispatch.Item[E]{Value: e})
	}
}

// emitKeyed pushes e with a coalescing key so a lagging subscriber only sees
// the newest pending value.
func (s *listenerSet[E]) emitKeyed(e E, key string) {
	for _, sub := range s.subs {
		sub.queue.Push(dispatch.Item[E]{Value: e, Key: key})
	}
}

// closeAll closes every queue, letting workers drain pending events.
func (s *listenerSet[E]) closeAll() {
	for _, sub := range s.subs {
		sub.queue.Close()
	}
	s.subs = nil
}

func (s *listenerSet[E]) len() int {
	return len(s.subs)
}
