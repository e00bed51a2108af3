package db

import (
	"database/sql"
	"fmt"
)

// sqliteSchema stores every collection in one table. seq breaks ties between
// documents created within the same clock tick.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    data       TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection_created
    ON documents(collection, created_at);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
    seq        BIGSERIAL PRIMARY KEY,
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    data       JSONB NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_collection_created
    ON documents(collection, created_at);
`

// migrations are applied in order after the schema. Each must be idempotent.
// Append new migrations at the end.
var migrations = map[string][]string{
	DriverSQLite:   {},
	DriverPostgres: {},
}

// EnsureSchema creates the documents table and indexes if they don't already exist.
func EnsureSchema(db *sql.DB, driver string) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return fmt.Errorf("unsupported sql driver %q", driver)
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations[driver] {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
