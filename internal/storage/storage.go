package storage

import (
	"context"
	"time"
)

// Incidents defines the operations on captured errors and breadcrumbs
type Incidents interface {
	// Incident operations
	RecordIncident(ctx context.Context, inc *Incident) error
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]*Incident, error)

	// Breadcrumb operations
	RecordBreadcrumb(ctx context.Context, b *BreadcrumbRecord) error
	ListBreadcrumbs(ctx context.Context, correlationID string, limit int) ([]*BreadcrumbRecord, error)

	// Retention
	PurgeBefore(ctx context.Context, cutoff time.Time) (*PurgeResult, error)
}

// Store is the local error-tracking store
type Store interface {
	Incidents

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Incidents
}

// Incident is a captured error
type Incident struct {
	ID            int64          `json:"id"`
	Component     string         `json:"component"`
	Operation     string         `json:"operation"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Message       string         `json:"message"`
	ErrorType     string         `json:"errorType,omitempty"`
	Hint          string         `json:"hint,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

// BreadcrumbRecord is a persisted breadcrumb
type BreadcrumbRecord struct {
	ID            int64          `json:"id"`
	Category      string         `json:"category"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlationId,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	RecordedAt    time.Time      `json:"recordedAt"`
}

// IncidentFilter narrows ListIncidents. Zero fields match everything.
type IncidentFilter struct {
	Component     string
	Operation     string
	CorrelationID string
	Since         time.Time
	Limit         int // defaults to DefaultListLimit
}

// PurgeResult reports how many rows a retention pass removed
type PurgeResult struct {
	Incidents   int64 `json:"incidents"`
	Breadcrumbs int64 `json:"breadcrumbs"`
}

// DefaultListLimit bounds list queries without an explicit limit
const DefaultListLimit = 50
