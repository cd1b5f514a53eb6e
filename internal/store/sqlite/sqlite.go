// Package sqlite provides the embedded store.Driver: an event journal in a
// single SQLite file, accessed through sqlx with OTEL instrumentation via
// otelsql.
package sqlite

import (
	"context"
	"fmt"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/jensholdgaard/trinity/internal/config"
	"github.com/jensholdgaard/trinity/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT    NOT NULL UNIQUE,
	aggregate_id TEXT    NOT NULL,
	type         TEXT    NOT NULL,
	data         BLOB    NOT NULL,
	version      INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_aggregate ON events(aggregate_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`

func init() {
	store.Register("sqlite", open)
}

// open is the store.Driver for the "sqlite" backend.
func open(ctx context.Context, cfg config.DatabaseConfig) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return &store.Repositories{
		Events: NewEventStore(db),
		Closer: store.CloserFunc(db.Close),
		Ping:   db.PingContext,
	}, nil
}

// Connect opens the journal file, applies the schema and verifies the
// connection.
func Connect(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	sqlDB, err := otelsql.Open("sqlite", dsn,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite journal: %w", err)
	}
	db := sqlx.NewDb(sqlDB, "sqlite")
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite journal: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}

	return db, nil
}
