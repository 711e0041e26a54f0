package version

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	cerrors "github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/pool"
	"github.com/tablekit/tablekit/internal/router"
)

// DataRow is one stored record of a schema's ingested data, held as a loose
// field map so backfills can add columns without a table rewrite.
type DataRow struct {
	ID       string
	SchemaID string
	Values   map[string]interface{}
}

// InsertRows bulk-inserts data rows for a schema. The operation shape is
// handed to the router: payloads above the bulk threshold go to the replica
// pool's connection.
func (s *Store) InsertRows(ctx context.Context, schemaID string, rows []map[string]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	decision := s.router.Route(router.OpCreateMany, router.EntityDataRow, router.Args{Rows: len(rows)})
	if decision.Comment != "" {
		log.Printf("version: %s", decision.Comment)
	}

	return s.withConn(ctx, decision.Target, func(db *sql.DB) error {
		query := s.d.Rebind(`INSERT INTO data_rows (id, schema_id, row_json, created_at) VALUES (?, ?, ?, ?)`)
		now := time.Now().Unix()
		for _, values := range rows {
			data, err := json.Marshal(values)
			if err != nil {
				return cerrors.NewInternal("failed to marshal data row", err)
			}
			if _, err := db.ExecContext(ctx, query, uuid.New().String(), schemaID, string(data), now); err != nil {
				return cerrors.NewPersistence(cerrors.CodeQueryFailed,
					fmt.Sprintf("failed to insert data row for schema %s", schemaID), err)
			}
		}
		return nil
	})
}

// CountRows returns the number of stored rows for a schema.
func (s *Store) CountRows(ctx context.Context, schemaID string) (int64, error) {
	target := s.routeRead(router.OpFindMany, router.EntityDataRow, router.Args{})

	var count int64
	err := s.withConn(ctx, target, func(db *sql.DB) error {
		query := s.d.Rebind(`SELECT COUNT(*) FROM data_rows WHERE schema_id = ?`)
		if err := db.QueryRowContext(ctx, query, schemaID).Scan(&count); err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to count rows for schema %s", schemaID), err)
		}
		return nil
	})
	return count, err
}

// FetchRowBatch returns up to limit rows for a schema with IDs greater than
// afterID, in ID order. Keyset pagination keeps backfill batches bounded
// without OFFSET scans.
func (s *Store) FetchRowBatch(ctx context.Context, schemaID, afterID string, limit int) ([]DataRow, error) {
	target := s.routeRead(router.OpFindMany, router.EntityDataRow, router.Args{Take: limit})

	var batch []DataRow
	err := s.withConn(ctx, target, func(db *sql.DB) error {
		query := s.d.Rebind(`SELECT id, schema_id, row_json FROM data_rows
			WHERE schema_id = ? AND id > ? ORDER BY id LIMIT ?`)
		rows, err := db.QueryContext(ctx, query, schemaID, afterID, limit)
		if err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to fetch row batch for schema %s", schemaID), err)
		}
		defer rows.Close()

		for rows.Next() {
			var row DataRow
			var rowJSON string
			if err := rows.Scan(&row.ID, &row.SchemaID, &rowJSON); err != nil {
				return cerrors.NewPersistence(cerrors.CodeQueryFailed, "failed to scan data row", err)
			}
			if err := json.Unmarshal([]byte(rowJSON), &row.Values); err != nil {
				return cerrors.NewInternal(fmt.Sprintf("corrupt row payload for row %s", row.ID), err)
			}
			batch = append(batch, row)
		}
		return rows.Err()
	})
	return batch, err
}

// UpdateRow rewrites one data row's payload.
func (s *Store) UpdateRow(ctx context.Context, row DataRow) error {
	data, err := json.Marshal(row.Values)
	if err != nil {
		return cerrors.NewInternal("failed to marshal data row", err)
	}

	return s.withConn(ctx, pool.Primary, func(db *sql.DB) error {
		query := s.d.Rebind(`UPDATE data_rows SET row_json = ? WHERE id = ?`)
		if _, err := db.ExecContext(ctx, query, string(data), row.ID); err != nil {
			return cerrors.NewPersistence(cerrors.CodeQueryFailed,
				fmt.Sprintf("failed to update data row %s", row.ID), err)
		}
		return nil
	})
}

// ListRows returns every stored row for a schema. Intended for callers that
// know the row count is small; backfills use FetchRowBatch instead.
func (s *Store) ListRows(ctx context.Context, schemaID string) ([]DataRow, error) {
	var all []DataRow
	afterID := ""
	for {
		batch, err := s.FetchRowBatch(ctx, schemaID, afterID, 500)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)
		afterID = batch[len(batch)-1].ID
	}
}
