package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidIncident is returned when an incident lacks its component or operation
	ErrInvalidIncident = errors.New("incident requires component and operation")
)

// SQLiteStorage implements the Store interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// ExpandPath resolves a leading ~ to the user's home directory
func ExpandPath(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// NewSQLiteStorage creates a new SQLite storage instance. The parent
// directory of a file-backed database is created if needed.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		expanded, err := ExpandPath(dbPath)
		if err != nil {
			return nil, err
		}
		dbPath = expanded
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// encodeMap stores a map as JSON text, NULL when empty
func encodeMap(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeMap(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Incident operations

// recordIncidentWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) recordIncidentWithQuerier(ctx context.Context, q querier, inc *Incident) error {
	if inc.Component == "" || inc.Operation == "" {
		return ErrInvalidIncident
	}
	if inc.OccurredAt.IsZero() {
		inc.OccurredAt = time.Now()
	}

	extra, err := encodeMap(inc.Extra)
	if err != nil {
		return fmt.Errorf("failed to encode incident extra: %w", err)
	}

	query := `
		INSERT INTO incidents (component, operation, correlation_id, message, error_type, hint, extra, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		inc.Component, inc.Operation, nullable(inc.CorrelationID), inc.Message,
		nullable(inc.ErrorType), nullable(inc.Hint), extra, inc.OccurredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record incident: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	inc.ID = id
	return nil
}

func (s *SQLiteStorage) RecordIncident(ctx context.Context, inc *Incident) error {
	return s.recordIncidentWithQuerier(ctx, s.querier(), inc)
}

// listIncidentsWithQuerier returns incidents newest first
func (s *SQLiteStorage) listIncidentsWithQuerier(ctx context.Context, q querier, filter IncidentFilter) ([]*Incident, error) {
	query := `
		SELECT id, component, operation, correlation_id, message, error_type, hint, extra, occurred_at
		FROM incidents
		WHERE 1=1
	`
	args := make([]interface{}, 0, 5)

	if filter.Component != "" {
		query += " AND component = ?"
		args = append(args, filter.Component)
	}
	if filter.Operation != "" {
		query += " AND operation = ?"
		args = append(args, filter.Operation)
	}
	if filter.CorrelationID != "" {
		query += " AND correlation_id = ?"
		args = append(args, filter.CorrelationID)
	}
	if !filter.Since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += " ORDER BY occurred_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	incidents := make([]*Incident, 0)
	for rows.Next() {
		var inc Incident
		var correlationID, errorType, hint, extra sql.NullString
		var occurredAt int64

		err := rows.Scan(
			&inc.ID, &inc.Component, &inc.Operation, &correlationID, &inc.Message,
			&errorType, &hint, &extra, &occurredAt,
		)
		if err != nil {
			return nil, err
		}

		inc.CorrelationID = correlationID.String
		inc.ErrorType = errorType.String
		inc.Hint = hint.String
		inc.OccurredAt = time.Unix(0, occurredAt)
		if inc.Extra, err = decodeMap(extra); err != nil {
			return nil, fmt.Errorf("failed to decode incident %d extra: %w", inc.ID, err)
		}

		incidents = append(incidents, &inc)
	}
	return incidents, rows.Err()
}

func (s *SQLiteStorage) ListIncidents(ctx context.Context, filter IncidentFilter) ([]*Incident, error) {
	return s.listIncidentsWithQuerier(ctx, s.querier(), filter)
}

// Breadcrumb operations

func (s *SQLiteStorage) recordBreadcrumbWithQuerier(ctx context.Context, q querier, b *BreadcrumbRecord) error {
	if b.RecordedAt.IsZero() {
		b.RecordedAt = time.Now()
	}

	data, err := encodeMap(b.Data)
	if err != nil {
		return fmt.Errorf("failed to encode breadcrumb data: %w", err)
	}

	query := `
		INSERT INTO breadcrumbs (category, message, correlation_id, data, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := q.ExecContext(ctx, query,
		b.Category, b.Message, nullable(b.CorrelationID), data, b.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record breadcrumb: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (s *SQLiteStorage) RecordBreadcrumb(ctx context.Context, b *BreadcrumbRecord) error {
	return s.recordBreadcrumbWithQuerier(ctx, s.querier(), b)
}

// listBreadcrumbsWithQuerier returns breadcrumbs oldest first, so a trail reads in order
func (s *SQLiteStorage) listBreadcrumbsWithQuerier(ctx context.Context, q querier, correlationID string, limit int) ([]*BreadcrumbRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, category, message, correlation_id, data, recorded_at
		FROM breadcrumbs
		WHERE (? = '' OR correlation_id = ?)
		ORDER BY recorded_at ASC, id ASC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, correlationID, correlationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	crumbs := make([]*BreadcrumbRecord, 0)
	for rows.Next() {
		var b BreadcrumbRecord
		var corr, data sql.NullString
		var recordedAt int64

		if err := rows.Scan(&b.ID, &b.Category, &b.Message, &corr, &data, &recordedAt); err != nil {
			return nil, err
		}

		b.CorrelationID = corr.String
		b.RecordedAt = time.Unix(0, recordedAt)
		if b.Data, err = decodeMap(data); err != nil {
			return nil, fmt.Errorf("failed to decode breadcrumb %d data: %w", b.ID, err)
		}

		crumbs = append(crumbs, &b)
	}
	return crumbs, rows.Err()
}

func (s *SQLiteStorage) ListBreadcrumbs(ctx context.Context, correlationID string, limit int) ([]*BreadcrumbRecord, error) {
	return s.listBreadcrumbsWithQuerier(ctx, s.querier(), correlationID, limit)
}

// Retention

func (s *SQLiteStorage) purgeBeforeWithQuerier(ctx context.Context, q querier, cutoff time.Time) (*PurgeResult, error) {
	result := &PurgeResult{}

	res, err := q.ExecContext(ctx, "DELETE FROM incidents WHERE occurred_at < ?", cutoff.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to purge incidents: %w", err)
	}
	if result.Incidents, err = res.RowsAffected(); err != nil {
		return nil, err
	}

	res, err = q.ExecContext(ctx, "DELETE FROM breadcrumbs WHERE recorded_at < ?", cutoff.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to purge breadcrumbs: %w", err)
	}
	if result.Breadcrumbs, err = res.RowsAffected(); err != nil {
		return nil, err
	}

	return result, nil
}

// PurgeBefore deletes incidents and breadcrumbs older than cutoff in one transaction
func (s *SQLiteStorage) PurgeBefore(ctx context.Context, cutoff time.Time) (*PurgeResult, error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.PurgeBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}
	return result, nil
}

// Transaction implementations

func (t *sqliteTx) RecordIncident(ctx context.Context, inc *Incident) error {
	return t.storage.recordIncidentWithQuerier(ctx, t.querier(), inc)
}

func (t *sqliteTx) ListIncidents(ctx context.Context, filter IncidentFilter) ([]*Incident, error) {
	return t.storage.listIncidentsWithQuerier(ctx, t.querier(), filter)
}

func (t *sqliteTx) RecordBreadcrumb(ctx context.Context, b *BreadcrumbRecord) error {
	return t.storage.recordBreadcrumbWithQuerier(ctx, t.querier(), b)
}

func (t *sqliteTx) ListBreadcrumbs(ctx context.Context, correlationID string, limit int) ([]*BreadcrumbRecord, error) {
	return t.storage.listBreadcrumbsWithQuerier(ctx, t.querier(), correlationID, limit)
}

func (t *sqliteTx) PurgeBefore(ctx context.Context, cutoff time.Time) (*PurgeResult, error) {
	return t.storage.purgeBeforeWithQuerier(ctx, t.querier(), cutoff)
}
