package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/codeguard-mcp/internal/incident"
	"github.com/dshills/codeguard-mcp/internal/logging"
)

// writeTimeout bounds a single incident write. Writes detach from the caller's
// context so errors raised by cancelled requests are still recorded.
const writeTimeout = 2 * time.Second

// hinter is implemented by errors that carry a remediation hint
type hinter interface {
	Hint() string
}

// Reporter persists captured errors and breadcrumbs to a Store
type Reporter struct {
	store  Incidents
	logger *zap.Logger
}

var _ incident.Reporter = (*Reporter)(nil)

// NewReporter creates an incident.Reporter backed by store
func NewReporter(store Incidents, logger *zap.Logger) *Reporter {
	return &Reporter{store: store, logger: logging.Component(logger, "storage")}
}

func (r *Reporter) Capture(ctx context.Context, ev incident.Event) {
	inc := &Incident{
		Component:     ev.Component,
		Operation:     ev.Operation,
		CorrelationID: ev.CorrelationID,
		Extra:         ev.Extra,
		OccurredAt:    ev.Time,
	}
	if ev.Err != nil {
		inc.Message = ev.Err.Error()
		inc.ErrorType = fmt.Sprintf("%T", rootCause(ev.Err))
		var h hinter
		if errors.As(ev.Err, &h) {
			inc.Hint = h.Hint()
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := r.store.RecordIncident(ctx, inc); err != nil {
		r.logger.Warn("failed to record incident",
			zap.String(logging.FieldCorrelationID, ev.CorrelationID),
			zap.String(logging.FieldOperation, ev.Operation),
			zap.Error(err),
		)
	}
}

func (r *Reporter) Breadcrumb(ctx context.Context, b incident.Breadcrumb) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	err := r.store.RecordBreadcrumb(ctx, &BreadcrumbRecord{
		Category:      b.Category,
		Message:       b.Message,
		CorrelationID: b.CorrelationID,
		Data:          b.Data,
		RecordedAt:    b.Time,
	})
	if err != nil {
		r.logger.Warn("failed to record breadcrumb",
			zap.String(logging.FieldCorrelationID, b.CorrelationID),
			zap.Error(err),
		)
	}
}

// rootCause unwraps single-error chains down to the innermost error
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
