package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeguard-mcp/internal/incident"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	version, err := SchemaVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestNewSQLiteStorageCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "incidents.db")
	storage, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	// Reopening an existing database is a no-op migration
	storage, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer storage.Close()
}

func TestMigrationsRollback(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, storage.db))
	version, err := SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)

	require.NoError(t, RollbackMigration(ctx, storage.db))
	version, err = SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version)

	assert.Error(t, RollbackMigration(ctx, storage.db))

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	version, err = SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestRecordIncident(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	inc := &Incident{
		Component:     "transport",
		Operation:     "search.stream",
		CorrelationID: "c-1",
		Message:       "GET /.api/search/stream: status 503",
		Hint:          "retry later",
		Extra:         map[string]any{"attempts": 4},
	}
	require.NoError(t, storage.RecordIncident(ctx, inc))
	assert.Greater(t, inc.ID, int64(0))
	assert.False(t, inc.OccurredAt.IsZero())

	got, err := storage.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c-1", got[0].CorrelationID)
	assert.Equal(t, "retry later", got[0].Hint)
	// JSON numbers decode as float64
	assert.Equal(t, float64(4), got[0].Extra["attempts"])
	assert.True(t, inc.OccurredAt.Equal(got[0].OccurredAt))

	err = storage.RecordIncident(ctx, &Incident{Message: "no component"})
	assert.ErrorIs(t, err, ErrInvalidIncident)
}

func TestListIncidentsFilter(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []string{"transport", "searcher", "searcher", "analyzer"} {
		require.NoError(t, storage.RecordIncident(ctx, &Incident{
			Component:     c,
			Operation:     "op",
			CorrelationID: fmt.Sprintf("c-%d", i),
			Message:       "failed",
			OccurredAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("by component, newest first", func(t *testing.T) {
		got, err := storage.ListIncidents(ctx, IncidentFilter{Component: "searcher"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c-2", got[0].CorrelationID)
		assert.Equal(t, "c-1", got[1].CorrelationID)
	})

	t.Run("by correlation", func(t *testing.T) {
		got, err := storage.ListIncidents(ctx, IncidentFilter{CorrelationID: "c-3"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "analyzer", got[0].Component)
	})

	t.Run("since", func(t *testing.T) {
		got, err := storage.ListIncidents(ctx, IncidentFilter{Since: base.Add(2 * time.Minute)})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := storage.ListIncidents(ctx, IncidentFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "c-3", got[0].CorrelationID)
	})
}

func TestBreadcrumbs(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, storage.RecordBreadcrumb(ctx, &BreadcrumbRecord{
			Category:      "transport",
			Message:       fmt.Sprintf("retry %d", i+1),
			CorrelationID: "c-1",
			Data:          map[string]any{"attempt": i + 1},
			RecordedAt:    base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, storage.RecordBreadcrumb(ctx, &BreadcrumbRecord{Category: "cache", Message: "other", CorrelationID: "c-2"}))

	got, err := storage.ListBreadcrumbs(ctx, "c-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "retry 1", got[0].Message)
	assert.Equal(t, "retry 3", got[2].Message)

	all, err := storage.ListBreadcrumbs(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPurgeBefore(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	now := time.Now()
	old := now.Add(-8 * 24 * time.Hour)
	require.NoError(t, storage.RecordIncident(ctx, &Incident{Component: "cache", Operation: "sweep", Message: "old", OccurredAt: old}))
	require.NoError(t, storage.RecordIncident(ctx, &Incident{Component: "cache", Operation: "sweep", Message: "new", OccurredAt: now}))
	require.NoError(t, storage.RecordBreadcrumb(ctx, &BreadcrumbRecord{Category: "transport", Message: "old", RecordedAt: old}))

	result, err := storage.PurgeBefore(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, &PurgeResult{Incidents: 1, Breadcrumbs: 1}, result)

	got, err := storage.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Message)
}

func TestTransactionRollback(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()
	ctx := context.Background()

	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.RecordIncident(ctx, &Incident{Component: "searcher", Operation: "findImports", Message: "x"}))

	inTx, err := tx.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)
	assert.Len(t, inTx, 1)
	require.NoError(t, tx.Rollback())

	got, err := storage.ListIncidents(ctx, IncidentFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

type hintedError struct{ msg string }

func (e *hintedError) Error() string { return e.msg }
func (e *hintedError) Hint() string  { return "check the access token" }

func TestReporter(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	r := NewReporter(storage, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // records survive a cancelled request context

	r.Capture(ctx, incident.Event{
		Component:     "transport",
		Operation:     "search.stream",
		CorrelationID: "c-9",
		Err:           fmt.Errorf("search.stream failed after 1 attempt(s): %w", &hintedError{msg: "status 401"}),
		Extra:         map[string]any{"status": 401},
		Time:          time.Now(),
	})
	r.Breadcrumb(ctx, incident.Breadcrumb{Category: "transport", Message: "retrying", CorrelationID: "c-9"})

	got, err := storage.ListIncidents(context.Background(), IncidentFilter{CorrelationID: "c-9"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "check the access token", got[0].Hint)
	assert.Equal(t, "*storage.hintedError", got[0].ErrorType)
	assert.Contains(t, got[0].Message, "status 401")

	crumbs, err := storage.ListBreadcrumbs(context.Background(), "c-9", 0)
	require.NoError(t, err)
	assert.Len(t, crumbs, 1)
}

func TestReporterStoreFailure(t *testing.T) {
	storage := setupTestDB(t)
	require.NoError(t, storage.Close())

	// A closed store only logs
	r := NewReporter(storage, nil)
	assert.NotPanics(t, func() {
		r.Capture(context.Background(), incident.Event{Component: "cache", Operation: "sweep", Err: errors.New("boom")})
	})
}
