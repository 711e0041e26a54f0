// Package dialect abstracts database-specific connection and SQL details so
// the store layer can target sqlite, postgres, or mysql with one query set.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect abstracts per-database connection and binding behavior. Queries in
// the store layer are written with `?` placeholders and rebound per dialect.
type Dialect interface {
	// Name returns the dialect name used in configuration
	Name() string

	// Driver returns the database/sql driver name to open connections with
	Driver() string

	// DSN maps a configured data source name to the driver's expected form
	DSN(configured string) string

	// Rebind rewrites `?` placeholders into the dialect's native form
	Rebind(query string) string

	// QuoteIdent quotes an identifier (table or column name)
	QuoteIdent(ident string) string

	// BlobType returns the column type used for binary snapshot blobs
	BlobType() string
}

// ForName returns the dialect for a configured name.
func ForName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("dialect: unsupported dialect %q", name)
	}
}

// rebindNumbered rewrites `?` placeholders as prefix1..prefixN, used by
// dialects with positional parameters.
func rebindNumbered(query, prefix string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(prefix)
			fmt.Fprintf(&b, "%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
