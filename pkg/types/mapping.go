package types

// MatchType classifies how a file column was matched against a schema column.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
	MatchNone  MatchType = "none"
)

// ColumnMapping associates one file column with at most one schema column.
// Mappings are ephemeral: the core computes them but does not persist them.
type ColumnMapping struct {
	// FileColumn is the incoming column name
	FileColumn string `json:"file_column"`

	// SchemaColumn is the matched schema column, empty when MatchType is none
	SchemaColumn string `json:"schema_column,omitempty"`

	// MatchType records how the match was made
	MatchType MatchType `json:"match_type"`

	// Confidence is 1.0 for exact matches, the normalized similarity for fuzzy
	// matches, and 0 when unmatched
	Confidence float64 `json:"confidence"`
}

// MappingSuggestion is the richer scoring variant used by mapping UIs. Unlike
// ColumnMapping it carries the combined score and a human-readable reason.
type MappingSuggestion struct {
	FileColumn   string  `json:"file_column"`
	SchemaColumn string  `json:"schema_column"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}
