// Package types defines the shared value types for the schema evolution core:
// columns, schemas, immutable version snapshots, change logs, and column mappings.
package types

// ColumnType is the logical type of a schema column. The set below is the
// canonical enumeration; the string base keeps it open for caller-defined types,
// which map to TEXT at the storage layer.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeNumeric   ColumnType = "numeric"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
)

// SchemaColumn defines a single column in a schema. Name is the case-sensitive
// identity key within one schema's column set.
type SchemaColumn struct {
	// Name is the column name, unique within a schema
	Name string `json:"name"`

	// Type is the logical column type
	Type ColumnType `json:"type"`

	// Description is optional free-form documentation
	Description string `json:"description,omitempty"`

	// IsRequired indicates the column must not be null
	IsRequired bool `json:"is_required"`

	// IsPrimaryKey indicates the column is part of the primary key
	IsPrimaryKey bool `json:"is_primary_key"`

	// IsForeignKey indicates the column references another table
	IsForeignKey bool `json:"is_foreign_key"`

	// ReferencesTable and ReferencesColumn identify the foreign key target
	ReferencesTable  string `json:"references_table,omitempty"`
	ReferencesColumn string `json:"references_column,omitempty"`

	// DefaultValue is the optional default, rendered verbatim into change scripts
	DefaultValue *string `json:"default_value,omitempty"`

	// ValidationRules holds optional structured validation constraints
	ValidationRules *ValidationRules `json:"validation_rules,omitempty"`
}

// ValidationRules holds structured validation constraints for a column.
// It replaces an opaque JSON blob with explicit fields so equality can be
// defined directly instead of serialize-then-compare.
type ValidationRules struct {
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Enum      []string `json:"enum,omitempty"`
}

// Equal reports deep equality of two rule sets. Nil and the zero value are
// distinct: a column with empty rules differs from one with none.
func (v *ValidationRules) Equal(o *ValidationRules) bool {
	if v == nil || o == nil {
		return v == o
	}
	if !intPtrEqual(v.MinLength, o.MinLength) || !intPtrEqual(v.MaxLength, o.MaxLength) {
		return false
	}
	if v.Pattern != o.Pattern {
		return false
	}
	if !floatPtrEqual(v.Min, o.Min) || !floatPtrEqual(v.Max, o.Max) {
		return false
	}
	if len(v.Enum) != len(o.Enum) {
		return false
	}
	for i := range v.Enum {
		if v.Enum[i] != o.Enum[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two column definitions are structurally identical
// across every comparable field.
func (c SchemaColumn) Equal(o SchemaColumn) bool {
	if c.Name != o.Name ||
		c.Type != o.Type ||
		c.Description != o.Description ||
		c.IsRequired != o.IsRequired ||
		c.IsPrimaryKey != o.IsPrimaryKey ||
		c.IsForeignKey != o.IsForeignKey ||
		c.ReferencesTable != o.ReferencesTable ||
		c.ReferencesColumn != o.ReferencesColumn {
		return false
	}
	if !strPtrEqual(c.DefaultValue, o.DefaultValue) {
		return false
	}
	return c.ValidationRules.Equal(o.ValidationRules)
}

// ColumnsEqual reports whether two ordered column sets are structurally identical.
func ColumnsEqual(a, b []SchemaColumn) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// FileColumn describes a column arriving from an uploaded file. Type carries the
// uploader's declared type and is mapped to a ColumnType during evolution.
type FileColumn struct {
	// Name is the (possibly normalized) column header
	Name string `json:"name"`

	// OriginalName is the header exactly as it appeared in the file
	OriginalName string `json:"original_name,omitempty"`

	// Type is the declared or inferred source type, free-form
	Type string `json:"type,omitempty"`

	// SampleValues holds a few raw values for downstream inference
	SampleValues []string `json:"sample_values,omitempty"`
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
