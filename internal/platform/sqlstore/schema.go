// Package sqlstore implements the store interfaces over database/sql,
// supporting PostgreSQL (pgx) and the embedded sqlite driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect selects the SQL flavor for schema bootstrap and driver error
// mapping.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectForDriver maps a database/sql driver name onto its dialect.
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "pgx":
		return DialectPostgres, nil
	case "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_created_at_id
		ON items (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS idempotency_records (
		id BIGSERIAL PRIMARY KEY,
		principal_id TEXT NOT NULL,
		route_key TEXT NOT NULL,
		idem_key TEXT NOT NULL,
		request_hash TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		response_body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_idem_scope UNIQUE (principal_id, route_key, idem_key)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_created_at_id
		ON items (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS idempotency_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		principal_id TEXT NOT NULL,
		route_key TEXT NOT NULL,
		idem_key TEXT NOT NULL,
		request_hash TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		response_body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		CONSTRAINT uq_idem_scope UNIQUE (principal_id, route_key, idem_key)
	)`,
}

// InitSchema creates the tables and indexes if they do not exist. The
// schema is bootstrapped in-process at startup; there is deliberately no
// migration tooling around it.
func InitSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	var stmts []string
	switch dialect {
	case DialectPostgres:
		stmts = postgresSchema
	case DialectSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}
