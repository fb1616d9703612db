package stockd

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vango-dev/huddle/pkg/client"
	"github.com/vango-dev/huddle/pkg/dispatch"
	"github.com/vango-dev/huddle/pkg/payload"
	"github.com/vango-dev/huddle/pkg/session"
)

// Watcher follows one ticker. It holds the latest decoded quote; callers
// block in Wait instead of polling a changed flag.
type Watcher struct {
	ba     *client.ByteArray
	id     session.ListenerID
	latest dispatch.Latest[payload.Stock]
	logger *slog.Logger

	mu      sync.Mutex
	version uint64 // newest byte array version stored
}

// Watch joins the byte array for symbol, creating it so a publisher will
// pick it up, and starts following it. The current quote, if any, is
// available immediately.
func Watch(ctx context.Context, sess *client.Session, symbol string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ba, err := sess.CreateByteArray(ctx, symbol, session.DefaultByteArrayOptions())
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		ba:     ba,
		logger: logger.With("component", "stockd.watcher", "symbol", symbol),
	}

	w.id, err = ba.AddByteArrayListener(ctx, func(ev session.ByteArrayEvent) {
		if ev.Kind == session.ValueChanged {
			w.store(ev.Value, ev.Version)
		}
	})
	if err != nil {
		return nil, err
	}

	snap, err := ba.Snapshot(ctx)
	if err != nil {
		ba.RemoveByteArrayListener(ctx, w.id)
		return nil, err
	}
	if snap.Version > 0 {
		w.store(snap.Value, snap.Version)
	}
	return w, nil
}

// store decodes and publishes value unless a newer version is already
// stored. Malformed quotes are logged and dropped.
func (w *Watcher) store(value []byte, version uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if version <= w.version {
		return
	}
	quote, err := payload.DecodeStock(value)
	if err != nil {
		w.logger.Warn("dropping malformed quote", "version", version, "error", err)
		return
	}
	w.version = version
	w.latest.Set(quote)
}

// Symbol returns the watched symbol.
func (w *Watcher) Symbol() string {
	return w.ba.Name()
}

// Load returns the latest quote and its sequence number. Sequence 0 means
// no quote has arrived yet.
func (w *Watcher) Load() (payload.Stock, uint64) {
	return w.latest.Load()
}

// Wait blocks until a quote newer than seq arrives.
func (w *Watcher) Wait(ctx context.Context, seq uint64) (payload.Stock, uint64, error) {
	return w.latest.Wait(ctx, seq)
}

// Close stops following the ticker and leaves its byte array.
func (w *Watcher) Close(ctx context.Context) error {
	if err := w.ba.RemoveByteArrayListener(ctx, w.id); err != nil {
		return err
	}
	return w.ba.Leave(ctx)
}
