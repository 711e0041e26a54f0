// Package diff computes structural differences between two schema column sets
// and renders them as human-auditable change scripts.
package diff

import "github.com/tablekit/tablekit/pkg/types"

// Modification pairs the before and after state of a column present in both
// sets with at least one differing field. Full column objects are kept on both
// sides for traceability.
type Modification struct {
	Before types.SchemaColumn `json:"before"`
	After  types.SchemaColumn `json:"after"`
}

// Comparison partitions the union of two column sets by change kind. Every
// column name in either input appears in exactly one bucket.
type Comparison struct {
	Added     []types.SchemaColumn `json:"added"`
	Removed   []types.SchemaColumn `json:"removed"`
	Modified  []Modification       `json:"modified"`
	Unchanged []types.SchemaColumn `json:"unchanged"`
}

// Compare diffs two column sets by name. Nil slices are valid and treated as
// empty. Added follows newColumns order; removed, modified, and unchanged
// follow oldColumns order.
func Compare(oldColumns, newColumns []types.SchemaColumn) Comparison {
	oldByName := make(map[string]types.SchemaColumn, len(oldColumns))
	for _, col := range oldColumns {
		oldByName[col.Name] = col
	}
	newByName := make(map[string]types.SchemaColumn, len(newColumns))
	for _, col := range newColumns {
		newByName[col.Name] = col
	}

	var cmp Comparison
	for _, col := range newColumns {
		if _, ok := oldByName[col.Name]; !ok {
			cmp.Added = append(cmp.Added, col)
		}
	}
	for _, old := range oldColumns {
		updated, ok := newByName[old.Name]
		if !ok {
			cmp.Removed = append(cmp.Removed, old)
			continue
		}
		if old.Equal(updated) {
			cmp.Unchanged = append(cmp.Unchanged, old)
		} else {
			cmp.Modified = append(cmp.Modified, Modification{Before: old, After: updated})
		}
	}
	return cmp
}

// ChangeLog converts a comparison into the ordered change entries recorded on
// a schema version.
func (c Comparison) ChangeLog() []types.SchemaChange {
	var changes []types.SchemaChange
	for i := range c.Added {
		col := c.Added[i]
		changes = append(changes, types.SchemaChange{
			Type:       types.ChangeAdd,
			ColumnName: col.Name,
			After:      &col,
		})
	}
	for i := range c.Modified {
		mod := c.Modified[i]
		changes = append(changes, types.SchemaChange{
			Type:       types.ChangeModify,
			ColumnName: mod.Before.Name,
			Before:     &mod.Before,
			After:      &mod.After,
		})
	}
	for i := range c.Removed {
		col := c.Removed[i]
		changes = append(changes, types.SchemaChange{
			Type:       types.ChangeRemove,
			ColumnName: col.Name,
			Before:     &col,
		})
	}
	return changes
}

// HasChanges reports whether the comparison contains any structural change.
func (c Comparison) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0 || len(c.Modified) > 0
}
