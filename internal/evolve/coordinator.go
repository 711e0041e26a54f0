// Package evolve orchestrates column matching, diffing, and version snapshots
// to evolve a schema from a set of incoming file columns, optionally
// backfilling stored rows with defaults for the new columns.
package evolve

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tablekit/tablekit/internal/config"
	cerrors "github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/match"
	"github.com/tablekit/tablekit/internal/version"
	"github.com/tablekit/tablekit/pkg/types"
)

// Options controls one evolution run.
type Options struct {
	// AddNewColumns appends unmatched file columns as new schema columns
	AddNewColumns bool

	// MigrateData backfills stored rows with default values for new columns
	MigrateData bool

	// UpdateExistingRecords overwrites values already present when migrating
	UpdateExistingRecords bool

	// CreateNewVersion snapshots the pre-mutation schema state
	CreateNewVersion bool
}

// DefaultOptions returns the default evolution options.
func DefaultOptions() Options {
	return Options{
		AddNewColumns:    true,
		CreateNewVersion: true,
	}
}

// MigrationStatus accumulates per-row backfill outcomes. A single row's
// failure never aborts the run; it is counted and recorded here.
type MigrationStatus struct {
	Migrated int      `json:"migrated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Result is the outcome of an evolution run. Non-fatal conditions are
// reported as Success=false with a message; only unexpected failures surface
// as errors.
type Result struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message,omitempty"`
	Schema     *types.GlobalSchema  `json:"schema,omitempty"`
	NewColumns []types.SchemaColumn `json:"new_columns,omitempty"`
	Mappings   []types.ColumnMapping `json:"mappings,omitempty"`
	Migration  *MigrationStatus     `json:"migration,omitempty"`
}

// Coordinator wires the column matcher, diff engine, and version store into
// the evolution workflow.
type Coordinator struct {
	store     *version.Store
	batchSize int
}

// New creates a coordinator using the configured migration batch size.
func New(store *version.Store, cfg *config.Config) *Coordinator {
	batch := cfg.Evolution.MigrationBatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Coordinator{store: store, batchSize: batch}
}

// Plan computes the mappings and prospective new columns for a candidate file
// column set without mutating anything. Used by mapping UIs ahead of Evolve.
func (c *Coordinator) Plan(schema *types.GlobalSchema, fileColumns []types.FileColumn) ([]types.ColumnMapping, []types.SchemaColumn, error) {
	if schema == nil {
		return nil, nil, cerrors.NewValidation(cerrors.CodeInvalidSchema, "schema must not be nil")
	}
	mappings := match.Identify(fileColumns, schema.Columns)
	return mappings, newColumnsFromUnmatched(fileColumns, mappings), nil
}

// Evolve runs one evolution: match candidate columns, snapshot the
// pre-mutation state, persist the widened schema, and optionally backfill
// stored rows. The old state is always captured before the new state is
// written.
func (c *Coordinator) Evolve(ctx context.Context, schema *types.GlobalSchema, fileColumns []types.FileColumn, actor string, opts Options) (*Result, error) {
	if schema == nil {
		return nil, cerrors.NewValidation(cerrors.CodeInvalidSchema, "schema must not be nil")
	}
	if schema.ID == "" {
		return nil, cerrors.NewValidation(cerrors.CodeInvalidSchema, "schema ID must not be empty")
	}
	if fileColumns == nil {
		return nil, cerrors.NewValidation(cerrors.CodeInvalidColumns, "file columns must not be nil")
	}

	mappings := match.Identify(fileColumns, schema.Columns)
	newColumns := newColumnsFromUnmatched(fileColumns, mappings)

	if len(newColumns) == 0 {
		return &Result{
			Success:  false,
			Message:  "all file columns matched existing schema columns; nothing to evolve",
			Schema:   schema,
			Mappings: mappings,
		}, nil
	}
	if !opts.AddNewColumns {
		return &Result{
			Success:  false,
			Message:  fmt.Sprintf("%d unmatched columns found but addNewColumns is disabled", len(newColumns)),
			Schema:   schema,
			Mappings: mappings,
		}, nil
	}

	// Snapshot the pre-mutation state before anything is written
	if opts.CreateNewVersion {
		comment := fmt.Sprintf("Before adding columns: %s", columnNames(newColumns))
		snap, err := c.store.CreateVersion(ctx, schema, actor, comment)
		if err != nil {
			return resultFromStoreError(err, mappings)
		}
		schema.PreviousVersionID = snap.ID
	}

	expected := schema.Version
	schema.Columns = append(schema.CloneColumns(), newColumns...)
	schema.Version = expected + 1

	if err := c.store.UpdateSchema(ctx, schema, expected); err != nil {
		return resultFromStoreError(err, mappings)
	}

	log.Printf("evolve: schema %s widened by %d columns (version %d -> %d)",
		schema.ID, len(newColumns), expected, schema.Version)

	result := &Result{
		Success:    true,
		Message:    fmt.Sprintf("added %d new columns", len(newColumns)),
		Schema:     schema,
		NewColumns: newColumns,
		Mappings:   mappings,
	}

	if opts.MigrateData {
		status, err := c.backfill(ctx, schema.ID, newColumns, opts.UpdateExistingRecords)
		if err != nil {
			return resultFromStoreError(err, mappings)
		}
		result.Migration = status
		if status.Migrated == 0 {
			result.Success = false
			result.Message = "no rows migrated"
		}
	}

	return result, nil
}

// backfill populates the new columns on stored rows in bounded batches,
// tolerating per-row failures.
func (c *Coordinator) backfill(ctx context.Context, schemaID string, newColumns []types.SchemaColumn, overwrite bool) (*MigrationStatus, error) {
	status := &MigrationStatus{}
	afterID := ""
	processed := 0

	for {
		batch, err := c.store.FetchRowBatch(ctx, schemaID, afterID, c.batchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		for _, row := range batch {
			changed := false
			for _, col := range newColumns {
				if _, present := row.Values[col.Name]; present && !overwrite {
					continue
				}
				if row.Values == nil {
					row.Values = make(map[string]interface{})
				}
				row.Values[col.Name] = defaultValueFor(col.Type)
				changed = true
			}

			if !changed {
				status.Skipped++
				continue
			}

			if err := c.store.UpdateRow(ctx, row); err != nil {
				status.Failed++
				status.Errors = append(status.Errors, fmt.Sprintf("row %s: %v", row.ID, err))
				continue
			}
			status.Migrated++
		}

		processed += len(batch)
		if processed%1000 == 0 {
			log.Printf("evolve: backfill progress for schema %s: %d rows processed", schemaID, processed)
		}
		afterID = batch[len(batch)-1].ID
	}

	log.Printf("evolve: backfill complete for schema %s — %d migrated, %d skipped, %d failed",
		schemaID, status.Migrated, status.Skipped, status.Failed)
	return status, nil
}

// newColumnsFromUnmatched builds schema columns for every unmatched file
// column, mapping the declared file type onto the schema type enumeration.
func newColumnsFromUnmatched(fileColumns []types.FileColumn, mappings []types.ColumnMapping) []types.SchemaColumn {
	unmatched := make(map[string]bool)
	for _, m := range mappings {
		if m.MatchType == types.MatchNone {
			unmatched[m.FileColumn] = true
		}
	}

	var cols []types.SchemaColumn
	seen := make(map[string]bool)
	for _, fc := range fileColumns {
		if !unmatched[fc.Name] || seen[fc.Name] {
			continue
		}
		seen[fc.Name] = true
		cols = append(cols, types.SchemaColumn{
			Name:        fc.Name,
			Type:        MapFileType(fc.Type),
			Description: descriptionFor(fc),
		})
	}
	return cols
}

// MapFileType maps a declared file column type to a schema column type:
// numeric family to numeric, boolean to boolean, date/time family to
// timestamp, everything else to text.
func MapFileType(fileType string) types.ColumnType {
	switch strings.ToLower(fileType) {
	case "numeric", "integer", "int", "bigint", "float", "double", "decimal", "number", "real":
		return types.TypeNumeric
	case "boolean", "bool":
		return types.TypeBoolean
	case "timestamp", "date", "datetime", "time":
		return types.TypeTimestamp
	default:
		return types.TypeText
	}
}

// defaultValueFor returns the backfill default per type: 0 for numeric, false
// for boolean, null for timestamp and everything else.
func defaultValueFor(t types.ColumnType) interface{} {
	switch t {
	case types.TypeNumeric, types.TypeInteger:
		return 0
	case types.TypeBoolean:
		return false
	default:
		return nil
	}
}

func descriptionFor(fc types.FileColumn) string {
	if fc.OriginalName != "" && fc.OriginalName != fc.Name {
		return fmt.Sprintf("Added from file column %q", fc.OriginalName)
	}
	return ""
}

func columnNames(cols []types.SchemaColumn) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// resultFromStoreError converts store failures into the result contract:
// not-found and persistence failures become Success=false with the underlying
// message; anything else propagates for the caller to classify.
func resultFromStoreError(err error, mappings []types.ColumnMapping) (*Result, error) {
	switch cerrors.GetCategory(err) {
	case cerrors.ErrCategoryNotFound, cerrors.ErrCategoryPersistence:
		return &Result{Success: false, Message: err.Error(), Mappings: mappings}, nil
	default:
		return nil, err
	}
}
