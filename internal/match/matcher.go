package match

import (
	"fmt"
	"strings"

	"github.com/tablekit/tablekit/pkg/types"
)

// FuzzyThreshold is the minimum normalized similarity for a fuzzy match.
const FuzzyThreshold = 0.7

// SuggestionThreshold is the minimum combined score for a mapping suggestion.
const SuggestionThreshold = 0.5

// Scoring weights for SuggestMappings.
const (
	scoreExactName           = 1.0
	scoreNameContainment     = 0.7
	scoreOriginalExact       = 0.9
	scoreOriginalContainment = 0.6
	scoreFuzzyWeight         = 0.5
	scoreTypeCompatibility   = 0.3
)

// Identify maps each file column to its best schema column. An exact
// case-insensitive name match wins outright with confidence 1.0; otherwise the
// best fuzzy candidate above FuzzyThreshold is taken; otherwise the column is
// unmatched. Zero schema columns yields an unmatched mapping per file column.
func Identify(fileColumns []types.FileColumn, schemaColumns []types.SchemaColumn) []types.ColumnMapping {
	mappings := make([]types.ColumnMapping, 0, len(fileColumns))

	for _, fc := range fileColumns {
		mapping := types.ColumnMapping{
			FileColumn: fc.Name,
			MatchType:  types.MatchNone,
		}

		for _, sc := range schemaColumns {
			if strings.EqualFold(fc.Name, sc.Name) {
				mapping.SchemaColumn = sc.Name
				mapping.MatchType = types.MatchExact
				mapping.Confidence = 1.0
				break
			}

			sim := Similarity(fc.Name, sc.Name)
			if sim > FuzzyThreshold && sim > mapping.Confidence {
				mapping.SchemaColumn = sc.Name
				mapping.MatchType = types.MatchFuzzy
				mapping.Confidence = sim
			}
		}

		mappings = append(mappings, mapping)
	}

	return mappings
}

// SuggestMappings is the richer scoring variant used by mapping UIs. Each file
// column's best-scoring schema column is suggested when the combined score
// clears SuggestionThreshold; the reason string names every signal that fired.
func SuggestMappings(fileColumns []types.FileColumn, schemaColumns []types.SchemaColumn) []types.MappingSuggestion {
	var suggestions []types.MappingSuggestion

	for _, fc := range fileColumns {
		var best types.MappingSuggestion

		for _, sc := range schemaColumns {
			score, reasons := scoreCandidate(fc, sc)
			if score > best.Confidence {
				confidence := score
				if confidence > 1.0 {
					confidence = 1.0
				}
				best = types.MappingSuggestion{
					FileColumn:   fc.Name,
					SchemaColumn: sc.Name,
					Confidence:   confidence,
					Reason:       strings.Join(reasons, "; "),
				}
			}
		}

		if best.Confidence > SuggestionThreshold {
			suggestions = append(suggestions, best)
		}
	}

	return suggestions
}

// scoreCandidate combines the individual name and type signals for one
// file-column/schema-column pair.
func scoreCandidate(fc types.FileColumn, sc types.SchemaColumn) (float64, []string) {
	var score float64
	var reasons []string

	fileName := strings.ToLower(fc.Name)
	schemaName := strings.ToLower(sc.Name)

	if fileName == schemaName {
		score += scoreExactName
		reasons = append(reasons, "exact name match")
	} else if fileName != "" && schemaName != "" &&
		(strings.Contains(fileName, schemaName) || strings.Contains(schemaName, fileName)) {
		score += scoreNameContainment
		reasons = append(reasons, "name containment")
	}

	if fc.OriginalName != "" {
		origName := strings.ToLower(fc.OriginalName)
		if origName == schemaName {
			score += scoreOriginalExact
			reasons = append(reasons, "original name match")
		} else if schemaName != "" &&
			(strings.Contains(origName, schemaName) || strings.Contains(schemaName, origName)) {
			score += scoreOriginalContainment
			reasons = append(reasons, "original name containment")
		}
	}

	if sim := Similarity(fc.Name, sc.Name); sim > FuzzyThreshold && fileName != schemaName {
		score += scoreFuzzyWeight * sim
		reasons = append(reasons, fmt.Sprintf("fuzzy similarity %.2f", sim))
	}

	if TypesCompatible(fc.Type, sc.Type) {
		score += scoreTypeCompatibility
		reasons = append(reasons, "compatible types")
	}

	return score, reasons
}

// TypesCompatible reports whether a declared file type and a schema column
// type fall in the same compatibility class. A string-typed schema column
// accepts any source type.
func TypesCompatible(fileType string, schemaType types.ColumnType) bool {
	ft := typeClass(strings.ToLower(fileType))
	st := typeClass(strings.ToLower(string(schemaType)))

	if st == classString {
		return true
	}
	return ft != classUnknown && ft == st
}

type compatClass int

const (
	classUnknown compatClass = iota
	classNumeric
	classString
	classBoolean
	classDate
)

func typeClass(t string) compatClass {
	switch t {
	case "numeric", "integer", "int", "bigint", "float", "double", "decimal", "number", "real":
		return classNumeric
	case "text", "string", "varchar", "char":
		return classString
	case "boolean", "bool":
		return classBoolean
	case "timestamp", "date", "datetime", "time":
		return classDate
	default:
		return classUnknown
	}
}
