package version

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/tablekit/tablekit/internal/dialect"
	"github.com/tablekit/tablekit/internal/diff"
	cerrors "github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/pool"
	"github.com/tablekit/tablekit/internal/router"
	"github.com/tablekit/tablekit/pkg/types"
)

// Store persists schemas, immutable version snapshots, and data rows. All
// database access borrows a pooled connection chosen by the query router and
// releases it on every path.
type Store struct {
	pool   *pool.Pool
	router *router.Router
	d      dialect.Dialect
}

// NewStore creates a version store on top of a connection pool and router.
func NewStore(p *pool.Pool, r *router.Router, d dialect.Dialect) *Store {
	return &Store{pool: p, router: r, d: d}
}

// Init creates the store's tables and indexes on the primary database.
func (s *Store) Init(ctx context.Context) error {
	return s.withConn(ctx, pool.Primary, func(db *sql.DB) error {
		for _, stmt := range AllSchemaSQL(s.d) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return cerrors.NewPersistence(cerrors.CodeQueryFailed, "failed to initialize version store schema", err)
			}
		}
		return nil
	})
}

// CreateSchema inserts a new schema at version 1, assigning an ID when absent.
func (s *Store) CreateSchema(ctx context.Context, schema *types.GlobalSchema) error {
	if schema == nil {
		return cerrors.NewValidation(cerrors.CodeInvalidSchema, "schema must not be nil")
	}
	if err := validateColumnNames(schema.Columns); err != nil {
		return err
	}

	if schema.ID == "" {
		schema.ID = uuid.New().String()
	}
	if schema.Version == 0 {
		schema.Version = 1
	}
	schema.UpdatedAt = time.Now()

	blob, err := encodeColumns(schema.Columns)
	if err != nil {
		return err
	}

	return s.withConn(ctx, pool.Primary, func(db *sql.DB) error {
		query := s.d.Rebind(`INSERT INTO schemas (id, owner, name, columns_blob, version, previous_version_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		_, err := db.ExecContext(ctx, query,
			schema.ID, schema.Owner, schema.Name, blob, schema.Version,
			nullable(schema.PreviousVersionID), schema.UpdatedAt.Unix())
		if err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to insert schema %s", schema.ID), err)
		}
		s.recordEvent(ctx, db, schema.ID, "schema_created", schema.Owner, schema.Name)
		return nil
	})
}

// GetSchema retrieves a schema by ID. Absence is a structured NOT_FOUND error.
func (s *Store) GetSchema(ctx context.Context, schemaID string) (*types.GlobalSchema, error) {
	target := s.routeRead(router.OpFindMany, router.EntityGlobalSchema, router.Args{Take: 1})

	var schema *types.GlobalSchema
	err := s.withConn(ctx, target, func(db *sql.DB) error {
		query := s.d.Rebind(`SELECT id, owner, name, columns_blob, version, previous_version_id, updated_at
			FROM schemas WHERE id = ?`)

		var blob []byte
		var prev sql.NullString
		var updatedAt int64
		sch := &types.GlobalSchema{}
		err := db.QueryRowContext(ctx, query, schemaID).Scan(
			&sch.ID, &sch.Owner, &sch.Name, &blob, &sch.Version, &prev, &updatedAt)
		if err == sql.ErrNoRows {
			return cerrors.NewNotFound(cerrors.CodeSchemaNotFound,
				fmt.Sprintf("schema %s not found", schemaID))
		}
		if err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to load schema %s", schemaID), err)
		}

		cols, err := decodeColumns(blob)
		if err != nil {
			return err
		}
		sch.Columns = cols
		sch.PreviousVersionID = prev.String
		sch.UpdatedAt = time.Unix(updatedAt, 0)
		schema = sch
		return nil
	})
	return schema, err
}

// UpdateSchema persists a mutated schema with a version-checked conditional
// update: the row is written only when its stored version still equals
// expectedVersion. Zero rows affected surfaces a retryable WRITE_CONFLICT,
// guarding concurrent evolutions of the same schema against clobbering each
// other's version counter.
func (s *Store) UpdateSchema(ctx context.Context, schema *types.GlobalSchema, expectedVersion int) error {
	if schema == nil {
		return cerrors.NewValidation(cerrors.CodeInvalidSchema, "schema must not be nil")
	}
	if err := validateColumnNames(schema.Columns); err != nil {
		return err
	}

	blob, err := encodeColumns(schema.Columns)
	if err != nil {
		return err
	}
	schema.UpdatedAt = time.Now()

	return s.withConn(ctx, pool.Primary, func(db *sql.DB) error {
		query := s.d.Rebind(`UPDATE schemas
			SET columns_blob = ?, version = ?, previous_version_id = ?, updated_at = ?
			WHERE id = ? AND version = ?`)
		res, err := db.ExecContext(ctx, query,
			blob, schema.Version, nullable(schema.PreviousVersionID), schema.UpdatedAt.Unix(),
			schema.ID, expectedVersion)
		if err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to update schema %s", schema.ID), err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to read update result for schema %s", schema.ID), err)
		}
		if affected == 0 {
			return cerrors.NewPersistence(cerrors.CodeWriteConflict,
				fmt.Sprintf("schema %s changed concurrently (expected version %d)", schema.ID, expectedVersion), nil)
		}
		return nil
	})
}

// DeleteSchema removes a schema and cascades to its versions, rows, and events.
func (s *Store) DeleteSchema(ctx context.Context, schemaID string) error {
	return s.withConn(ctx, pool.Primary, func(db *sql.DB) error {
		for _, table := range []string{"schema_versions", "data_rows", "schema_events", "schemas"} {
			col := "schema_id"
			if table == "schemas" {
				col = "id"
			}
			query := s.d.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, col))
			if _, err := db.ExecContext(ctx, query, schemaID); err != nil {
				return cerrors.NewPersistence(cerrors.CodeQueryFailed,
					fmt.Sprintf("failed to delete from %s for schema %s", table, schemaID), err)
			}
		}
		return nil
	})
}

// CreateVersion snapshots the given schema state as the next version. The
// first snapshot is version 1 with an empty change log; later snapshots derive
// their change log by diffing against the previous snapshot's columns.
func (s *Store) CreateVersion(ctx context.Context, schema *types.GlobalSchema, actor, comment string) (*types.SchemaVersion, error) {
	if schema == nil {
		return nil, cerrors.NewValidation(cerrors.CodeInvalidSchema, "schema must not be nil")
	}

	next := 1
	var changeLog []types.SchemaChange
	fp := types.Fingerprint(schema.Columns)

	latest, err := s.GetLatest(ctx, schema.ID)
	if err != nil && !cerrors.IsNotFound(err) {
		return nil, err
	}
	if latest != nil {
		next = latest.Version + 1
		// Fingerprint short-circuit: identical column sets need no diff
		if types.Fingerprint(latest.Columns) != fp {
			changeLog = diff.Compare(latest.Columns, schema.Columns).ChangeLog()
		}
	}

	snapshot := &types.SchemaVersion{
		ID:        uuid.New().String(),
		SchemaID:  schema.ID,
		Version:   next,
		Columns:   schema.CloneColumns(),
		CreatedAt: time.Now(),
		CreatedBy: actor,
		Comment:   comment,
		ChangeLog: changeLog,
	}

	blob, err := encodeColumns(snapshot.Columns)
	if err != nil {
		return nil, err
	}
	changeLogJSON, err := json.Marshal(changeLog)
	if err != nil {
		return nil, cerrors.NewInternal("failed to marshal change log", err)
	}

	err = s.withConn(ctx, pool.Primary, func(db *sql.DB) error {
		query := s.d.Rebind(`INSERT INTO schema_versions
			(id, schema_id, version, columns_blob, fingerprint, change_log, created_at, created_by, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		_, err := db.ExecContext(ctx, query,
			snapshot.ID, snapshot.SchemaID, snapshot.Version, blob,
			strconv.FormatUint(fp, 16), string(changeLogJSON),
			snapshot.CreatedAt.Unix(), snapshot.CreatedBy, nullable(snapshot.Comment))
		if err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to insert version %d for schema %s", snapshot.Version, snapshot.SchemaID), err)
		}
		s.recordEvent(ctx, db, snapshot.SchemaID, "version_created", actor,
			fmt.Sprintf("version %d (%d changes)", snapshot.Version, len(changeLog)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// GetVersions lists a schema's versions, newest first.
func (s *Store) GetVersions(ctx context.Context, schemaID string) ([]types.SchemaVersion, error) {
	target := s.routeRead(router.OpFindMany, router.EntitySchemaMetadata, router.Args{})

	var versions []types.SchemaVersion
	err := s.withConn(ctx, target, func(db *sql.DB) error {
		query := s.d.Rebind(`SELECT id, schema_id, version, columns_blob, change_log, created_at, created_by, comment
			FROM schema_versions WHERE schema_id = ? ORDER BY version DESC`)
		rows, err := db.QueryContext(ctx, query, schemaID)
		if err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to list versions for schema %s", schemaID), err)
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scanVersion(rows)
			if err != nil {
				return err
			}
			versions = append(versions, *v)
		}
		if err := rows.Err(); err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("error iterating versions for schema %s", schemaID), err)
		}
		return nil
	})
	return versions, err
}

// GetVersion retrieves one version of a schema. Absence is NOT_FOUND.
func (s *Store) GetVersion(ctx context.Context, schemaID string, number int) (*types.SchemaVersion, error) {
	target := s.routeRead(router.OpFindMany, router.EntitySchemaMetadata, router.Args{Take: 1})

	var found *types.SchemaVersion
	err := s.withConn(ctx, target, func(db *sql.DB) error {
		query := s.d.Rebind(`SELECT id, schema_id, version, columns_blob, change_log, created_at, created_by, comment
			FROM schema_versions WHERE schema_id = ? AND version = ?`)
		row := db.QueryRowContext(ctx, query, schemaID, number)
		v, err := scanVersion(row)
		if err == sql.ErrNoRows {
			return cerrors.NewNotFound(cerrors.CodeVersionNotFound,
				fmt.Sprintf("version %d not found for schema %s", number, schemaID))
		}
		if err != nil {
			return err
		}
		found = v
		return nil
	})
	return found, err
}

// GetLatest retrieves the highest-numbered version of a schema. Absence is
// NOT_FOUND: a schema with no snapshots yet has no latest version.
func (s *Store) GetLatest(ctx context.Context, schemaID string) (*types.SchemaVersion, error) {
	target := s.routeRead(router.OpFindMany, router.EntitySchemaMetadata, router.Args{Take: 1})

	var found *types.SchemaVersion
	err := s.withConn(ctx, target, func(db *sql.DB) error {
		query := s.d.Rebind(`SELECT id, schema_id, version, columns_blob, change_log, created_at, created_by, comment
			FROM schema_versions WHERE schema_id = ? ORDER BY version DESC LIMIT 1`)
		row := db.QueryRowContext(ctx, query, schemaID)
		v, err := scanVersion(row)
		if err == sql.ErrNoRows {
			return cerrors.NewNotFound(cerrors.CodeVersionNotFound,
				fmt.Sprintf("schema %s has no versions", schemaID))
		}
		if err != nil {
			return err
		}
		found = v
		return nil
	})
	return found, err
}

// RollbackResult is the outcome of a rollback request. NOT_FOUND conditions
// are reported as Success=false with a message rather than an error.
type RollbackResult struct {
	Success bool
	Message string
	Schema  *types.GlobalSchema
}

// Rollback restores a schema's columns to those of a historical version by
// writing a new forward version. History is append-only: the target version
// record is never touched, and the rollback itself is snapshotted with an
// auto-generated comment.
func (s *Store) Rollback(ctx context.Context, schemaID string, targetVersion int, actor string) (*RollbackResult, error) {
	schema, err := s.GetSchema(ctx, schemaID)
	if err != nil {
		if cerrors.IsNotFound(err) {
			return &RollbackResult{Success: false, Message: fmt.Sprintf("schema %s not found", schemaID)}, nil
		}
		return nil, err
	}

	target, err := s.GetVersion(ctx, schemaID, targetVersion)
	if err != nil {
		if cerrors.IsNotFound(err) {
			return &RollbackResult{
				Success: false,
				Message: fmt.Sprintf("version %d not found for schema %s", targetVersion, schemaID),
			}, nil
		}
		return nil, err
	}

	expected := schema.Version
	schema.Columns = types.CloneColumns(target.Columns)
	schema.Version = expected + 1
	schema.PreviousVersionID = target.ID

	if err := s.UpdateSchema(ctx, schema, expected); err != nil {
		return nil, err
	}

	comment := fmt.Sprintf("Rollback to version %d", targetVersion)
	if _, err := s.CreateVersion(ctx, schema, actor, comment); err != nil {
		return nil, err
	}

	log.Printf("version: schema %s rolled back to version %d (now at version %d)",
		schemaID, targetVersion, schema.Version)
	return &RollbackResult{Success: true, Schema: schema}, nil
}

// withConn runs fn with a connection borrowed from the given pool, always
// releasing it, including on error paths.
func (s *Store) withConn(ctx context.Context, target pool.Kind, fn func(*sql.DB) error) error {
	conn, err := s.pool.Borrow(ctx, target)
	if err != nil {
		return cerrors.NewPersistence(cerrors.CodeConnectionFailed,
			fmt.Sprintf("failed to borrow %s connection", target), err)
	}
	defer s.pool.Release(target, conn)
	return fn(conn.DB)
}

// routeRead asks the router where a read should go and logs any diagnostic
// annotation. The annotation never reaches query text.
func (s *Store) routeRead(op router.Operation, entity router.Entity, args router.Args) pool.Kind {
	decision := s.router.Route(op, entity, args)
	if decision.Comment != "" {
		log.Printf("version: %s", decision.Comment)
	}
	return decision.Target
}

// recordEvent writes a best-effort audit row. Failures are logged, never
// propagated: bookkeeping must not fail the primary operation.
func (s *Store) recordEvent(ctx context.Context, db *sql.DB, schemaID, eventType, actor, detail string) {
	cerrors.Attempt("version", "audit insert", func() error {
		query := s.d.Rebind(`INSERT INTO schema_events (id, schema_id, event_type, actor, detail, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		_, err := db.ExecContext(ctx, query,
			uuid.New().String(), schemaID, eventType, actor, detail, time.Now().Unix())
		return err
	})
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVersion(row scanner) (*types.SchemaVersion, error) {
	var blob []byte
	var changeLogJSON sql.NullString
	var comment sql.NullString
	var createdAt int64
	v := &types.SchemaVersion{}

	err := row.Scan(&v.ID, &v.SchemaID, &v.Version, &blob, &changeLogJSON, &createdAt, &v.CreatedBy, &comment)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, cerrors.NewPersistence(cerrors.CodeQueryFailed, "failed to scan schema version", err)
	}

	cols, err := decodeColumns(blob)
	if err != nil {
		return nil, err
	}
	v.Columns = cols
	v.CreatedAt = time.Unix(createdAt, 0)
	v.Comment = comment.String

	if changeLogJSON.Valid && changeLogJSON.String != "" && changeLogJSON.String != "null" {
		if err := json.Unmarshal([]byte(changeLogJSON.String), &v.ChangeLog); err != nil {
			return nil, cerrors.NewInternal("failed to unmarshal change log", err)
		}
	}
	return v, nil
}

// encodeColumns serializes a column set as snappy-compressed JSON.
func encodeColumns(cols []types.SchemaColumn) ([]byte, error) {
	data, err := json.Marshal(cols)
	if err != nil {
		return nil, cerrors.NewInternal("failed to marshal columns", err)
	}
	return snappy.Encode(nil, data), nil
}

// decodeColumns reverses encodeColumns.
func decodeColumns(blob []byte) ([]types.SchemaColumn, error) {
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, cerrors.NewInternal("failed to decompress column snapshot", err)
	}
	var cols []types.SchemaColumn
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, cerrors.NewInternal("failed to unmarshal column snapshot", err)
	}
	return cols, nil
}

// validateColumnNames enforces name uniqueness within one schema's column set.
func validateColumnNames(cols []types.SchemaColumn) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if c.Name == "" {
			return cerrors.NewValidation(cerrors.CodeInvalidColumns, "column name must not be empty")
		}
		if seen[c.Name] {
			return cerrors.NewValidation(cerrors.CodeInvalidColumns,
				fmt.Sprintf("duplicate column name %q", c.Name))
		}
		seen[c.Name] = true
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
