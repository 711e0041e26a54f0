package pool

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tablekit/tablekit/internal/config"
	"github.com/tablekit/tablekit/internal/dialect"
)

// NewDialer builds a Dialer from database configuration. Primary borrows dial
// the primary DSN, replica borrows the replica DSN (falling back to primary
// for single-database deployments). Each handle is a single underlying
// connection so the pool's accounting matches real connections.
func NewDialer(cfg *config.Config, d dialect.Dialect) Dialer {
	return func(ctx context.Context, kind Kind) (*sql.DB, error) {
		dsn := cfg.Database.PrimaryDSN
		if kind == Replica {
			dsn = cfg.ReplicaDSN()
		}

		db, err := sql.Open(d.Driver(), d.DSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s connection: %w", kind, err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping %s connection: %w", kind, err)
		}
		return db, nil
	}
}
