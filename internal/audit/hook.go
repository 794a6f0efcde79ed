// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sitter Contributors

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/sitter-id/sitter/internal/person"
	"github.com/sitter-id/sitter/pkg/errutil"
)

// Defaults for Options.
const (
	DefaultBuffer       = 256
	DefaultWriteTimeout = 5 * time.Second
)

// Audit metrics. Use RegisterMetrics to register them with a Prometheus registry.
var (
	DroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitter_audit_dropped_total",
		Help: "Audit entries dropped because the queue was full or closed",
	})
	FailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sitter_audit_failures_total",
		Help: "Audit entries the writer failed to persist",
	})
)

// RegisterMetrics registers audit metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(DroppedTotal, FailuresTotal)
}

// Options configures a Hook.
type Options struct {
	Buffer       int
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Hook queues an Entry for every committed change and writes it from a
// background goroutine. It never fails the lifecycle call.
type Hook struct {
	writer  Writer
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}
}

// NewHook starts the consumer goroutine. Call Close to stop it.
func NewHook(w Writer, opts Options) (*Hook, error) {
	if w == nil {
		return nil, oops.Code("AUDIT_INVALID_CONFIG").Errorf("writer is required")
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &Hook{
		writer:  w,
		timeout: opts.WriteTimeout,
		logger:  opts.Logger,
		queue:   make(chan Entry, opts.Buffer),
		done:    make(chan struct{}),
	}
	go h.run()
	return h, nil
}

// Name implements person.Named.
func (h *Hook) Name() string { return "audit" }

// Processed implements person.Processor. It enqueues without blocking.
func (h *Hook) Processed(ctx context.Context, p *person.Person, action person.Action) error {
	e := NewEntry(p, action)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		DroppedTotal.Inc()
		h.logger.WarnContext(ctx, "audit entry dropped: hook closed",
			"audit_id", e.ID.String(), "person_id", p.ID.String(), "action", string(action))
		return nil
	}

	select {
	case h.queue <- e:
	default:
		DroppedTotal.Inc()
		h.logger.WarnContext(ctx, "audit entry dropped: queue full",
			"audit_id", e.ID.String(), "person_id", p.ID.String(), "action", string(action))
	}
	return nil
}

func (h *Hook) run() {
	defer close(h.done)
	for e := range h.queue {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		if err := h.writer.Write(ctx, e); err != nil {
			FailuresTotal.Inc()
			errutil.LogWarn(ctx, h.logger, "audit write failed", err,
				"audit_id", e.ID.String(),
				"person_id", e.PersonID.String(),
				"action", string(e.Action),
			)
		}
		cancel()
	}
}

// Close stops accepting entries and waits for queued ones to be written,
// or for ctx to end.
func (h *Hook) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return oops.Code("AUDIT_CLOSE_TIMEOUT").With("pending", len(h.queue)).Wrap(ctx.Err())
	}
}

var _ person.Processor = (*Hook)(nil)
