package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"
)

// Worker drains one queue on its own goroutine, calling fn for each item.
type Worker struct {
	done chan struct{}
}

// Start launches a worker for q. A panic in fn is logged and the worker
// moves on to the next item. The worker exits once q is closed and drained.
func Start[T any](q *Queue[T], fn func(T), logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for {
			v, err := q.Pop(context.Background())
			if err != nil {
				return
			}
			deliver(fn, v, logger)
		}
	}()
	return w
}

func deliver[T any](fn func(T), v T, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listener panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn(v)
}

// Done returns a channel that's closed when the worker has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the worker has exited.
func (w *Worker) Wait() {
	<-w.done
}
