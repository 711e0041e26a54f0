package types

import "time"

// GlobalSchema is a named, owner-scoped mutable column set. Every structural
// change increments Version; the prior state is captured as a SchemaVersion
// before the mutation lands.
type GlobalSchema struct {
	// ID is the schema identifier (UUID)
	ID string `json:"id"`

	// Owner is the opaque user or project identifier owning the schema
	Owner string `json:"owner"`

	// Name is the display name
	Name string `json:"name"`

	// Columns is the ordered column set
	Columns []SchemaColumn `json:"columns"`

	// Version is the monotonically increasing version counter, starting at 1
	Version int `json:"version"`

	// PreviousVersionID references the snapshot taken before the latest change
	PreviousVersionID string `json:"previous_version_id,omitempty"`

	// UpdatedAt is the time of the last structural change
	UpdatedAt time.Time `json:"updated_at"`
}

// CloneColumns returns a deep copy of the schema's column set. Snapshots must
// not alias the live slice.
func (s *GlobalSchema) CloneColumns() []SchemaColumn {
	return CloneColumns(s.Columns)
}

// CloneColumns deep-copies a column slice, including pointer-valued fields.
func CloneColumns(cols []SchemaColumn) []SchemaColumn {
	if cols == nil {
		return nil
	}
	out := make([]SchemaColumn, len(cols))
	for i, c := range cols {
		cp := c
		if c.DefaultValue != nil {
			v := *c.DefaultValue
			cp.DefaultValue = &v
		}
		if c.ValidationRules != nil {
			r := *c.ValidationRules
			if c.ValidationRules.Enum != nil {
				r.Enum = append([]string(nil), c.ValidationRules.Enum...)
			}
			cp.ValidationRules = &r
		}
		out[i] = cp
	}
	return out
}

// SchemaVersion is an immutable historical snapshot of a schema's column set.
// Once written it is never mutated; rollback produces a new forward version.
type SchemaVersion struct {
	// ID is the snapshot identifier (UUID)
	ID string `json:"id"`

	// SchemaID is the owning schema
	SchemaID string `json:"schema_id"`

	// Version is unique per schema, strictly increasing, gapless under
	// single-writer use
	Version int `json:"version"`

	// Columns is a full copy of the column set at snapshot time
	Columns []SchemaColumn `json:"columns"`

	// CreatedAt is the snapshot time
	CreatedAt time.Time `json:"created_at"`

	// CreatedBy is the opaque actor identifier supplied by the caller
	CreatedBy string `json:"created_by"`

	// Comment is optional free text describing the change
	Comment string `json:"comment,omitempty"`

	// ChangeLog is the ordered diff against the previous version
	ChangeLog []SchemaChange `json:"change_log,omitempty"`
}

// ChangeType classifies a single schema change entry.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeRemove ChangeType = "remove"
	ChangeModify ChangeType = "modify"
)

// SchemaChange records one add/remove/modify entry in a version's change log.
// Before is present for remove/modify, After for add/modify.
type SchemaChange struct {
	Type       ChangeType    `json:"type"`
	ColumnName string        `json:"column_name"`
	Before     *SchemaColumn `json:"before,omitempty"`
	After      *SchemaColumn `json:"after,omitempty"`
}
