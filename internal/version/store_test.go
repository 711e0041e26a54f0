package version

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/tablekit/tablekit/internal/config"
	"github.com/tablekit/tablekit/internal/dialect"
	cerrors "github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/pool"
	"github.com/tablekit/tablekit/internal/router"
	"github.com/tablekit/tablekit/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Environment = config.EnvTest
	cfg.Database.PrimaryDSN = filepath.Join(t.TempDir(), "tablekit.db")

	d, err := dialect.ForName(cfg.Database.Dialect)
	if err != nil {
		t.Fatalf("failed to resolve dialect: %v", err)
	}

	p, err := pool.New(context.Background(), cfg.Pool, pool.NewDialer(cfg, d))
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(p.CloseAll)

	store := NewStore(p, router.New(cfg), d)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	return store
}

func testColumns() []types.SchemaColumn {
	return []types.SchemaColumn{
		{Name: "id", Type: types.TypeText, IsRequired: true},
		{Name: "email", Type: types.TypeText, IsRequired: true},
	}
}

func createTestSchema(t *testing.T, store *Store) *types.GlobalSchema {
	t.Helper()
	schema := &types.GlobalSchema{
		Owner:   "user-1",
		Name:    "contacts",
		Columns: testColumns(),
	}
	if err := store.CreateSchema(context.Background(), schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return schema
}

func TestStore_CreateAndGetSchema(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := createTestSchema(t, store)

	if schema.ID == "" {
		t.Fatal("expected an assigned ID")
	}
	if schema.Version != 1 {
		t.Errorf("new schema must start at version 1, got %d", schema.Version)
	}

	loaded, err := store.GetSchema(ctx, schema.ID)
	if err != nil {
		t.Fatalf("failed to load schema: %v", err)
	}
	if loaded.Owner != "user-1" || loaded.Name != "contacts" {
		t.Errorf("unexpected schema %+v", loaded)
	}
	if !types.ColumnsEqual(loaded.Columns, schema.Columns) {
		t.Errorf("columns did not survive the round trip: %+v", loaded.Columns)
	}
}

func TestStore_GetSchemaNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSchema(context.Background(), "no-such-id")
	if !cerrors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestStore_CreateSchemaRejectsBadColumns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dup := &types.GlobalSchema{Owner: "u", Name: "s", Columns: []types.SchemaColumn{
		{Name: "a", Type: types.TypeText},
		{Name: "a", Type: types.TypeText},
	}}
	if err := store.CreateSchema(ctx, dup); cerrors.GetCode(err) != cerrors.CodeInvalidColumns {
		t.Errorf("expected INVALID_COLUMNS for duplicate names, got %v", err)
	}

	unnamed := &types.GlobalSchema{Owner: "u", Name: "s", Columns: []types.SchemaColumn{{Name: ""}}}
	if err := store.CreateSchema(ctx, unnamed); cerrors.GetCode(err) != cerrors.CodeInvalidColumns {
		t.Errorf("expected INVALID_COLUMNS for empty name, got %v", err)
	}

	if err := store.CreateSchema(ctx, nil); cerrors.GetCode(err) != cerrors.CodeInvalidSchema {
		t.Errorf("expected INVALID_SCHEMA for nil schema, got %v", err)
	}
}

func TestStore_UpdateSchemaConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := createTestSchema(t, store)

	schema.Version = 2
	if err := store.UpdateSchema(ctx, schema, 1); err != nil {
		t.Fatalf("first conditional update must succeed: %v", err)
	}

	// A second writer still holding version 1 loses the race
	stale := &types.GlobalSchema{
		ID: schema.ID, Owner: schema.Owner, Name: schema.Name,
		Columns: testColumns(), Version: 2,
	}
	err := store.UpdateSchema(ctx, stale, 1)
	if cerrors.GetCode(err) != cerrors.CodeWriteConflict {
		t.Fatalf("expected WRITE_CONFLICT, got %v", err)
	}
	if !cerrors.IsRetryable(err) {
		t.Error("write conflicts must be retryable")
	}
}

func TestStore_VersionNumbersAreMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := createTestSchema(t, store)

	for i := 1; i <= 5; i++ {
		schema.Columns = append(schema.Columns, types.SchemaColumn{
			Name: fmt.Sprintf("extra_%d", i), Type: types.TypeText,
		})
		v, err := store.CreateVersion(ctx, schema, "tester", "")
		if err != nil {
			t.Fatalf("failed to create version %d: %v", i, err)
		}
		if v.Version != i {
			t.Fatalf("expected version %d, got %d", i, v.Version)
		}
	}

	latest, err := store.GetLatest(ctx, schema.ID)
	if err != nil {
		t.Fatalf("failed to get latest: %v", err)
	}
	if latest.Version != 5 {
		t.Errorf("expected latest version 5, got %d", latest.Version)
	}

	versions, err := store.GetVersions(ctx, schema.ID)
	if err != nil {
		t.Fatalf("failed to list versions: %v", err)
	}
	if len(versions) != 5 {
		t.Fatalf("expected 5 versions, got %d", len(versions))
	}
	for i, v := range versions {
		if v.Version != 5-i {
			t.Errorf("expected newest-first ordering, got %d at index %d", v.Version, i)
		}
	}
}

func TestStore_CreateVersionChangeLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := createTestSchema(t, store)

	v1, err := store.CreateVersion(ctx, schema, "tester", "initial")
	if err != nil {
		t.Fatalf("failed to create v1: %v", err)
	}
	if len(v1.ChangeLog) != 0 {
		t.Errorf("first snapshot must have an empty change log, got %+v", v1.ChangeLog)
	}

	schema.Columns = append(schema.Columns, types.SchemaColumn{Name: "age", Type: types.TypeNumeric})
	v2, err := store.CreateVersion(ctx, schema, "tester", "added age")
	if err != nil {
		t.Fatalf("failed to create v2: %v", err)
	}
	if len(v2.ChangeLog) != 1 || v2.ChangeLog[0].Type != types.ChangeAdd || v2.ChangeLog[0].ColumnName != "age" {
		t.Errorf("expected change log [add age], got %+v", v2.ChangeLog)
	}

	// Identical column sets short-circuit on fingerprint: empty change log
	v3, err := store.CreateVersion(ctx, schema, "tester", "no-op snapshot")
	if err != nil {
		t.Fatalf("failed to create v3: %v", err)
	}
	if v3.Version != 3 {
		t.Errorf("expected version 3, got %d", v3.Version)
	}
	if len(v3.ChangeLog) != 0 {
		t.Errorf("unchanged columns must yield an empty change log, got %+v", v3.ChangeLog)
	}

	// Change logs survive the round trip through storage
	stored, err := store.GetVersion(ctx, schema.ID, 2)
	if err != nil {
		t.Fatalf("failed to load v2: %v", err)
	}
	if len(stored.ChangeLog) != 1 || stored.ChangeLog[0].ColumnName != "age" {
		t.Errorf("persisted change log mismatch: %+v", stored.ChangeLog)
	}
	if stored.Comment != "added age" {
		t.Errorf("expected comment to persist, got %q", stored.Comment)
	}
}

func TestStore_GetVersionNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := createTestSchema(t, store)

	if _, err := store.GetVersion(ctx, schema.ID, 42); !cerrors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND for missing version, got %v", err)
	}
	if _, err := store.GetLatest(ctx, schema.ID); !cerrors.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND before first snapshot, got %v", err)
	}
}

func TestStore_RollbackIsAppendOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := createTestSchema(t, store)
	original := types.CloneColumns(schema.Columns)

	if _, err := store.CreateVersion(ctx, schema, "tester", "initial"); err != nil {
		t.Fatalf("failed to snapshot v1: %v", err)
	}

	// Evolve: add a column, bump the schema, snapshot v2
	schema.Columns = append(schema.Columns, types.SchemaColumn{Name: "age", Type: types.TypeNumeric})
	schema.Version = 2
	if err := store.UpdateSchema(ctx, schema, 1); err != nil {
		t.Fatalf("failed to update schema: %v", err)
	}
	if _, err := store.CreateVersion(ctx, schema, "tester", "added age"); err != nil {
		t.Fatalf("failed to snapshot v2: %v", err)
	}

	result, err := store.Rollback(ctx, schema.ID, 1, "tester")
	if err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected rollback success, got %q", result.Message)
	}

	// The live schema moved forward to version 3 with version 1's columns
	if result.Schema.Version != 3 {
		t.Errorf("rollback must advance the version, got %d", result.Schema.Version)
	}
	if !types.ColumnsEqual(result.Schema.Columns, original) {
		t.Errorf("expected restored columns %+v, got %+v", original, result.Schema.Columns)
	}

	// History gained a new snapshot; the target record is untouched
	versions, err := store.GetVersions(ctx, schema.ID)
	if err != nil {
		t.Fatalf("failed to list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions after rollback, got %d", len(versions))
	}
	if versions[0].Comment != "Rollback to version 1" {
		t.Errorf("expected rollback comment, got %q", versions[0].Comment)
	}

	v1, err := store.GetVersion(ctx, schema.ID, 1)
	if err != nil {
		t.Fatalf("failed to load v1: %v", err)
	}
	if !types.ColumnsEqual(v1.Columns, original) {
		t.Errorf("rollback must not rewrite historical snapshots: %+v", v1.Columns)
	}
}

func TestStore_RollbackMissingTargets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	result, err := store.Rollback(ctx, "no-such-schema", 1, "tester")
	if err != nil {
		t.Fatalf("missing schema must not be an error: %v", err)
	}
	if result.Success {
		t.Error("expected failure result for missing schema")
	}

	schema := createTestSchema(t, store)
	result, err = store.Rollback(ctx, schema.ID, 9, "tester")
	if err != nil {
		t.Fatalf("missing version must not be an error: %v", err)
	}
	if result.Success {
		t.Error("expected failure result for missing version")
	}
}

func TestStore_DeleteSchemaCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := createTestSchema(t, store)

	if _, err := store.CreateVersion(ctx, schema, "tester", ""); err != nil {
		t.Fatalf("failed to snapshot: %v", err)
	}
	if err := store.InsertRows(ctx, schema.ID, []map[string]interface{}{
		{"id": "r1", "email": "a@example.com"},
	}); err != nil {
		t.Fatalf("failed to insert rows: %v", err)
	}

	if err := store.DeleteSchema(ctx, schema.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := store.GetSchema(ctx, schema.ID); !cerrors.IsNotFound(err) {
		t.Errorf("expected schema gone, got %v", err)
	}
	versions, err := store.GetVersions(ctx, schema.ID)
	if err != nil || len(versions) != 0 {
		t.Errorf("expected no versions after cascade, got %d (%v)", len(versions), err)
	}
	count, err := store.CountRows(ctx, schema.ID)
	if err != nil || count != 0 {
		t.Errorf("expected no rows after cascade, got %d (%v)", count, err)
	}
}

func TestStore_RowLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	schema := createTestSchema(t, store)

	rows := make([]map[string]interface{}, 7)
	for i := range rows {
		rows[i] = map[string]interface{}{"id": fmt.Sprintf("r%d", i), "email": fmt.Sprintf("u%d@example.com", i)}
	}
	if err := store.InsertRows(ctx, schema.ID, rows); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	count, err := store.CountRows(ctx, schema.ID)
	if err != nil || count != 7 {
		t.Fatalf("expected 7 rows, got %d (%v)", count, err)
	}

	// Keyset pagination walks every row exactly once
	seen := make(map[string]bool)
	afterID := ""
	for {
		batch, err := store.FetchRowBatch(ctx, schema.ID, afterID, 3)
		if err != nil {
			t.Fatalf("batch fetch failed: %v", err)
		}
		if len(batch) == 0 {
			break
		}
		if len(batch) > 3 {
			t.Fatalf("batch exceeded limit: %d", len(batch))
		}
		for _, row := range batch {
			if seen[row.ID] {
				t.Fatalf("row %s returned twice", row.ID)
			}
			seen[row.ID] = true
		}
		afterID = batch[len(batch)-1].ID
	}
	if len(seen) != 7 {
		t.Errorf("pagination missed rows: saw %d of 7", len(seen))
	}

	all, err := store.ListRows(ctx, schema.ID)
	if err != nil || len(all) != 7 {
		t.Fatalf("expected 7 rows from ListRows, got %d (%v)", len(all), err)
	}

	target := all[0]
	target.Values["email"] = "changed@example.com"
	if err := store.UpdateRow(ctx, target); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	reloaded, err := store.ListRows(ctx, schema.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	found := false
	for _, row := range reloaded {
		if row.ID == target.ID {
			found = true
			if row.Values["email"] != "changed@example.com" {
				t.Errorf("update not persisted: %+v", row.Values)
			}
		}
	}
	if !found {
		t.Error("updated row missing from listing")
	}
}

func TestStore_InsertRowsEmpty(t *testing.T) {
	store := newTestStore(t)
	if err := store.InsertRows(context.Background(), "any", nil); err != nil {
		t.Errorf("empty insert must be a no-op, got %v", err)
	}
}
