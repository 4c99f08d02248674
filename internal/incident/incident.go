// Package incident defines the error-tracking sink contract. Components report
// unhandled errors and breadcrumbs here before returning the error to their
// caller.
package incident

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/codeguard-mcp/internal/logging"
)

// Event is an error captured from a component
type Event struct {
	Component     string
	Operation     string
	CorrelationID string
	Err           error
	Extra         map[string]any
	Time          time.Time
}

// Breadcrumb is a lightweight trail entry recorded ahead of a possible error
type Breadcrumb struct {
	Category      string
	Message       string
	CorrelationID string
	Data          map[string]any
	Time          time.Time
}

// Reporter is an error-tracking sink
type Reporter interface {
	Capture(ctx context.Context, ev Event)
	Breadcrumb(ctx context.Context, b Breadcrumb)
}

// Nop discards everything
type Nop struct{}

func (Nop) Capture(context.Context, Event)         {}
func (Nop) Breadcrumb(context.Context, Breadcrumb) {}

// LogReporter writes captured events to a zap logger
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter creates a reporter backed by logger
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logging.Component(logger, "incident")}
}

func (r *LogReporter) Capture(ctx context.Context, ev Event) {
	fields := append(logging.Fields(ev.CorrelationID, ev.Operation),
		zap.String("source", ev.Component),
		zap.Error(ev.Err),
	)
	if len(ev.Extra) > 0 {
		fields = append(fields, zap.Any("extra", ev.Extra))
	}
	r.logger.Error("captured error", fields...)
}

func (r *LogReporter) Breadcrumb(ctx context.Context, b Breadcrumb) {
	r.logger.Debug(b.Message,
		zap.String(logging.FieldCorrelationID, b.CorrelationID),
		zap.String("category", b.Category),
		zap.Any("data", b.Data),
	)
}

type multi []Reporter

// Multi fans every call out to all reporters
func Multi(reporters ...Reporter) Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multi) Capture(ctx context.Context, ev Event) {
	for _, r := range m {
		r.Capture(ctx, ev)
	}
}

func (m multi) Breadcrumb(ctx context.Context, b Breadcrumb) {
	for _, r := range m {
		r.Breadcrumb(ctx, b)
	}
}

// Recorder keeps events in memory; used by tests and diagnostics
type Recorder struct {
	mu          sync.Mutex
	events      []Event
	breadcrumbs []Breadcrumb
}

func (r *Recorder) Capture(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Breadcrumb(_ context.Context, b Breadcrumb) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breadcrumbs = append(r.breadcrumbs, b)
}

// Events returns a copy of the captured events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Breadcrumbs returns a copy of the recorded breadcrumbs
func (r *Recorder) Breadcrumbs() []Breadcrumb {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Breadcrumb(nil), r.breadcrumbs...)
}
