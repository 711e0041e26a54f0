// Package version persists immutable schema version snapshots and the mutable
// schemas they describe, and implements history listing and rollback.
package version

import (
	"fmt"

	"github.com/tablekit/tablekit/internal/dialect"
)

// SQL schema definitions for the version store. Timestamps are stored as Unix
// seconds; column snapshots are snappy-compressed JSON blobs with a murmur3
// fingerprint for cheap structural comparison.

const createSchemasTableSQL = `
CREATE TABLE IF NOT EXISTS schemas (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    columns_blob %s NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    previous_version_id TEXT,
    updated_at INTEGER NOT NULL
)`

const createSchemaVersionsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_versions (
    id TEXT PRIMARY KEY,
    schema_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    columns_blob %s NOT NULL,
    fingerprint TEXT NOT NULL,
    change_log TEXT,
    created_at INTEGER NOT NULL,
    created_by TEXT NOT NULL,
    comment TEXT,
    UNIQUE (schema_id, version),
    FOREIGN KEY (schema_id) REFERENCES schemas(id)
)`

const createDataRowsTableSQL = `
CREATE TABLE IF NOT EXISTS data_rows (
    id TEXT PRIMARY KEY,
    schema_id TEXT NOT NULL,
    row_json TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (schema_id) REFERENCES schemas(id)
)`

// schema_events is a best-effort audit trail. Failed inserts are logged and
// swallowed; they must never fail the primary operation.
const createSchemaEventsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_events (
    id TEXT PRIMARY KEY,
    schema_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    actor TEXT NOT NULL,
    detail TEXT,
    created_at INTEGER NOT NULL
)`

var createIndexesSQL = []string{
	// Version lookups always filter by schema and order by version
	`CREATE INDEX IF NOT EXISTS idx_schema_versions_schema ON schema_versions(schema_id, version)`,

	// Keyset pagination over a schema's rows during backfill
	`CREATE INDEX IF NOT EXISTS idx_data_rows_schema ON data_rows(schema_id, id)`,

	`CREATE INDEX IF NOT EXISTS idx_schema_events_schema ON schema_events(schema_id, created_at)`,
}

// AllSchemaSQL returns all statements needed to initialize the version store,
// with blob column types resolved for the given dialect.
func AllSchemaSQL(d dialect.Dialect) []string {
	statements := []string{
		fmt.Sprintf(createSchemasTableSQL, d.BlobType()),
		fmt.Sprintf(createSchemaVersionsTableSQL, d.BlobType()),
		createDataRowsTableSQL,
		createSchemaEventsTableSQL,
	}
	statements = append(statements, createIndexesSQL...)
	return statements
}
