package diff

import (
	"fmt"
	"strings"

	"github.com/tablekit/tablekit/pkg/types"
)

// StorageType maps a logical column type to its storage type name. Types
// outside the canonical enumeration fall back to TEXT.
func StorageType(t types.ColumnType) string {
	switch t {
	case types.TypeText:
		return "TEXT"
	case types.TypeInteger:
		return "INTEGER"
	case types.TypeNumeric:
		return "NUMERIC"
	case types.TypeBoolean:
		return "BOOLEAN"
	case types.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// GenerateChangeScript renders a comparison as an ordered, human-auditable
// ALTER script against the given table. The script is documentation for
// reviewers and operators; this engine never executes it.
func GenerateChangeScript(table string, cmp Comparison) string {
	var b strings.Builder

	for _, col := range cmp.Added {
		fmt.Fprintf(&b, "-- add column %s\n", col.Name)
		fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN %s %s", quote(table), quote(col.Name), StorageType(col.Type))
		if col.DefaultValue != nil {
			fmt.Fprintf(&b, " DEFAULT %s", *col.DefaultValue)
		}
		if col.IsRequired {
			b.WriteString(" NOT NULL")
		}
		b.WriteString(";\n")
	}

	for _, mod := range cmp.Modified {
		fmt.Fprintf(&b, "-- modify column %s\n", mod.Before.Name)
		name := quote(mod.Before.Name)
		if mod.Before.Type != mod.After.Type {
			fmt.Fprintf(&b, "ALTER TABLE %s ALTER COLUMN %s TYPE %s;\n", quote(table), name, StorageType(mod.After.Type))
		}
		if mod.Before.IsRequired != mod.After.IsRequired {
			if mod.After.IsRequired {
				fmt.Fprintf(&b, "ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;\n", quote(table), name)
			} else {
				fmt.Fprintf(&b, "ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;\n", quote(table), name)
			}
		}
		if !defaultsEqual(mod.Before.DefaultValue, mod.After.DefaultValue) {
			if mod.After.DefaultValue != nil {
				fmt.Fprintf(&b, "ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;\n", quote(table), name, *mod.After.DefaultValue)
			} else {
				fmt.Fprintf(&b, "ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;\n", quote(table), name)
			}
		}
	}

	for _, col := range cmp.Removed {
		fmt.Fprintf(&b, "-- drop column %s\n", col.Name)
		fmt.Fprintf(&b, "ALTER TABLE %s DROP COLUMN %s;\n", quote(table), quote(col.Name))
	}

	return b.String()
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func defaultsEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
