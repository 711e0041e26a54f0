package dialect

import (
	"strings"

	// PostgreSQL driver registration
	_ "github.com/lib/pq"
)

// Postgres targets PostgreSQL through lib/pq. Placeholders are positional ($n).
type Postgres struct{}

func (Postgres) Name() string   { return "postgres" }
func (Postgres) Driver() string { return "postgres" }

func (Postgres) DSN(configured string) string { return configured }

func (Postgres) Rebind(query string) string {
	return rebindNumbered(query, "$")
}

func (Postgres) QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (Postgres) BlobType() string { return "BYTEA" }
