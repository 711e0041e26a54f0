package dialect

import (
	"strings"

	// MySQL driver registration
	_ "github.com/go-sql-driver/mysql"
)

// MySQL targets MySQL/MariaDB. `?` placeholders are native; identifiers use
// backtick quoting.
type MySQL struct{}

func (MySQL) Name() string   { return "mysql" }
func (MySQL) Driver() string { return "mysql" }

func (MySQL) DSN(configured string) string {
	if strings.Contains(configured, "parseTime=") {
		return configured
	}
	sep := "?"
	if strings.Contains(configured, "?") {
		sep = "&"
	}
	return configured + sep + "parseTime=true"
}

func (MySQL) Rebind(query string) string { return query }

func (MySQL) QuoteIdent(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) BlobType() string { return "BLOB" }
