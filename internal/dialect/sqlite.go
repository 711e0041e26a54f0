package dialect

import (
	"strings"

	// SQLite driver registration
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the default dialect. DSNs are file paths; WAL mode and a busy
// timeout are appended so concurrent borrowers do not trip over file locks.
type SQLite struct{}

func (SQLite) Name() string   { return "sqlite" }
func (SQLite) Driver() string { return "sqlite3" }

func (SQLite) DSN(configured string) string {
	if strings.Contains(configured, "?") || strings.HasPrefix(configured, ":memory:") {
		return configured
	}
	return configured + "?_journal_mode=WAL&_busy_timeout=5000"
}

func (SQLite) Rebind(query string) string { return query }

func (SQLite) QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (SQLite) BlobType() string { return "BLOB" }
