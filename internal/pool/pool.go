// Package pool provides bounded connection pools for the primary database and
// its read replica, with age-based eviction and borrow/release semantics.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tablekit/tablekit/internal/config"
)

// Kind selects which pool a connection belongs to.
type Kind string

const (
	Primary Kind = "primary"
	Replica Kind = "replica"
)

// Conn is a pooled database handle. While idle it is owned exclusively by the
// pool; once borrowed it belongs to the borrower until released. It is never
// shared between two borrowers.
type Conn struct {
	DB *sql.DB

	kind      Kind
	createdAt time.Time
}

// Age returns how long ago the connection was created.
func (c *Conn) Age() time.Duration {
	return time.Since(c.createdAt)
}

// Dialer opens a fresh database handle for the given pool kind.
type Dialer func(ctx context.Context, kind Kind) (*sql.DB, error)

// Pool manages two independent connection pools (primary, replica). A single
// instance per process is the intended usage; construct it explicitly and
// tear it down with CloseAll rather than relying on package-level state, so
// tests can run isolated instances.
type Pool struct {
	mu sync.Mutex

	// idle holds released connections per kind, newest last
	idle map[Kind][]*Conn

	dialer      Dialer
	minIdle     int
	maxIdle     int
	maxLifetime time.Duration
	closed      bool

	// counters for Stats
	allocated int64
	evicted   int64
}

// Stats reports pool counters.
type Stats struct {
	PrimaryIdle int
	ReplicaIdle int
	Allocated   int64
	Evicted     int64
}

// New creates a pool and pre-warms MinIdle connections per kind.
// Pre-warm allocation failures propagate; a partially warmed pool is closed.
func New(ctx context.Context, cfg config.PoolConfig, dialer Dialer) (*Pool, error) {
	if dialer == nil {
		return nil, fmt.Errorf("pool: dialer is required")
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 10
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = 5 * time.Minute
	}

	p := &Pool{
		idle:        map[Kind][]*Conn{Primary: nil, Replica: nil},
		dialer:      dialer,
		minIdle:     cfg.MinIdle,
		maxIdle:     cfg.MaxIdle,
		maxLifetime: cfg.MaxLifetime,
	}

	for _, kind := range []Kind{Primary, Replica} {
		for i := 0; i < p.minIdle; i++ {
			conn, err := p.allocate(ctx, kind)
			if err != nil {
				p.CloseAll()
				return nil, fmt.Errorf("pool: failed to pre-warm %s pool: %w", kind, err)
			}
			p.idle[kind] = append(p.idle[kind], conn)
		}
	}

	return p, nil
}

// Borrow takes a connection from the pool, discarding over-age connections,
// or allocates a fresh one when the pool is empty. Pool capacity is a cache
// hint, not a concurrency cap: borrowing never blocks on pool size.
func (p *Pool) Borrow(ctx context.Context, kind Kind) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool: pool is closed")
	}

	var stale *Conn
	var conn *Conn
	if n := len(p.idle[kind]); n > 0 {
		conn = p.idle[kind][n-1]
		p.idle[kind] = p.idle[kind][:n-1]
		if time.Since(conn.createdAt) > p.maxLifetime {
			stale = conn
			conn = nil
			p.evicted++
		}
	}
	p.mu.Unlock()

	if stale != nil {
		// Over-age: discard asynchronously, best effort
		go func(c *Conn) {
			if err := c.DB.Close(); err != nil {
				log.Printf("[WARN] pool: failed to close expired %s connection (non-fatal): %v", kind, err)
			}
		}(stale)
	}

	if conn != nil {
		return conn, nil
	}
	return p.allocate(ctx, kind)
}

// Release returns a connection to its pool. When the pool is at capacity the
// connection is disconnected instead, best effort.
func (p *Pool) Release(kind Kind, conn *Conn) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	if !p.closed && len(p.idle[kind]) < p.maxIdle {
		p.idle[kind] = append(p.idle[kind], conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if err := conn.DB.Close(); err != nil {
		log.Printf("[WARN] pool: failed to close surplus %s connection (non-fatal): %v", kind, err)
	}
}

// CloseAll disconnects every pooled connection synchronously and empties both
// pools. Used for graceful shutdown and test teardown. Borrowed connections
// are not tracked; their borrowers remain responsible for releasing them.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for kind, conns := range p.idle {
		for _, conn := range conns {
			if err := conn.DB.Close(); err != nil {
				log.Printf("[WARN] pool: failed to close pooled %s connection during shutdown: %v", kind, err)
			}
		}
		p.idle[kind] = nil
	}
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		PrimaryIdle: len(p.idle[Primary]),
		ReplicaIdle: len(p.idle[Replica]),
		Allocated:   p.allocated,
		Evicted:     p.evicted,
	}
}

// allocate opens a fresh connection through the dialer. Failures propagate to
// the caller unchanged.
func (p *Pool) allocate(ctx context.Context, kind Kind) (*Conn, error) {
	db, err := p.dialer(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("pool: failed to allocate %s connection: %w", kind, err)
	}

	p.mu.Lock()
	p.allocated++
	p.mu.Unlock()

	return &Conn{DB: db, kind: kind, createdAt: time.Now()}, nil
}
