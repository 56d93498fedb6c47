package engine

import (
	"log/slog"
	"time"

	"eet/internal/audit"
	"eet/internal/journal"
	"eet/internal/platform/metrics"
	"eet/pkg/platform/circuit"
)

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithJournal records every attempt in store.
func WithJournal(store journal.Store) Option {
	return func(e *Engine) {
		e.journal = store
	}
}

// WithAuditPublisher emits one event per attempt.
func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(e *Engine) {
		e.audit = publisher
	}
}

// WithTransportFactory replaces the default SOAP binding.
func WithTransportFactory(f TransportFactory) Option {
	return func(e *Engine) {
		if f != nil {
			e.factory = f
		}
	}
}

// WithBreaker sets the circuit breaker shared by every SOAP binding.
// It is ignored when a custom TransportFactory is given.
func WithBreaker(b *circuit.Breaker) Option {
	return func(e *Engine) {
		e.breaker = b
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithConcurrency bounds SendAllReceiptsPartial.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}
