package audit

import (
	"context"
	"log/slog"
)

// Worker drains queued events into a sink. A failing sink is logged and the
// event dropped; the worker only stops when ctx is done or the inbox closes.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.sink.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit event dropped",
					"action", event.Action,
					"message_uuid", event.MessageUUID,
					"error", err,
				)
			}
		}
	}
}
