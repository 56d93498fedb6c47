package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Emitter accepts audit events.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, e Event) error
}

// Publisher stamps events and hands them to a sink synchronously.
type Publisher struct {
	sink Sink
	now  func() time.Time
}

func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink, now: time.Now}
}

func (p *Publisher) Emit(ctx context.Context, e Event) error {
	return p.sink.Append(ctx, stamp(e, p.now))
}

func stamp(e Event, now func() time.Time) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now()
	}
	return e
}

// ErrQueueFull is returned by Queue.Emit when the worker is behind.
var ErrQueueFull = errors.New("audit queue full")

// Queue stamps events and enqueues them for a Worker without blocking.
type Queue struct {
	out chan<- Event
	now func() time.Time
}

func NewQueue(out chan<- Event) *Queue {
	return &Queue{out: out, now: time.Now}
}

func (q *Queue) Emit(ctx context.Context, e Event) error {
	select {
	case q.out <- stamp(e, q.now):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// MemorySink keeps events in memory.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of everything appended so far.
func (s *MemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByMessage returns events of one receipt.
func (s *MemorySink) ByMessage(messageUUID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.MessageUUID == messageUUID {
			out = append(out, e)
		}
	}
	return out
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "audit",
		"id", e.ID,
		"action", e.Action,
		"message_uuid", e.MessageUUID,
		"receipt_serial", e.ReceiptSerial,
		"fik", e.FiscalCode,
		"error_number", e.ErrorNumber,
	)
	return nil
}
