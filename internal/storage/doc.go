// Package storage provides SQLite-based persistence for captured errors.
//
// The store keeps two tables:
//   - incidents: errors captured by the transport, cache, searcher and
//     analyzer, with their correlation ID, remediation hint and extra context
//   - breadcrumbs: the retry trail recorded ahead of a possible failure
//
// Reporter adapts a Store to incident.Reporter, so it can be plugged into the
// client next to the log reporter:
//
//	store, err := storage.NewSQLiteStorage("~/.codeguard/incidents.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	reporter := incident.Multi(
//	    incident.NewLogReporter(logger),
//	    storage.NewReporter(store, logger),
//	)
//
// # Retention
//
// PurgeBefore removes both incidents and breadcrumbs older than a cutoff in a
// single transaction. The server runs it once at startup.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3.
//
// # Migrations
//
// The schema is versioned with semantic versions; ApplyMigrations runs every
// migration newer than the recorded version on open.
package storage
