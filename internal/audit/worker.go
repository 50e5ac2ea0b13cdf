package audit

import (
	"context"
	"log/slog"
)

// Sink receives audit events from the worker. Stores and brokers both
// implement it so the worker can fan out without knowing the backends.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Worker consumes audit events from a channel and fans them out to every
// configured sink. A failing sink is logged and skipped; the trail keeps
// flowing to the others.
type Worker struct {
	sinks  []Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(inbox <-chan Event, logger *slog.Logger, sinks ...Sink) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sinks: sinks, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.dispatch(ctx, event)
		}
	}
}

// drain flushes events already queued at shutdown so accepted events are not
// silently lost. Uses a background context; the run context is already done.
func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.dispatch(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, event Event) {
	for _, sink := range w.sinks {
		if err := sink.Append(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "audit sink append failed",
				slog.String("action", event.Action),
				slog.String("error", err.Error()),
			)
		}
	}
}
