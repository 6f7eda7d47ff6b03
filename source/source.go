// Package source connects to relational databases and streams extraction
// batches. Supported drivers are postgres (pgx stdlib) and sqlserver.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/stratumhq/sluice/retry"
)

// ErrConnection indicates the source database could not be reached after
// exhausting the retry schedule.
var ErrConnection = errors.New("source connection failed")

// ExtractionError carries the job and batch position of a mid-extraction
// failure so the orchestrator can distinguish zero-progress failures from
// partial ones.
type ExtractionError struct {
	Job        string
	BatchIndex int
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s batch %d: %v", e.Job, e.BatchIndex, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Config holds source database configuration.
type Config struct {
	// Driver is "postgres" or "sqlserver".
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the connection string. Secrets come in via env expansion.
	DSN string `yaml:"dsn" json:"dsn"`
	// PoolSize caps open connections. Zero means driver default.
	PoolSize int `yaml:"pool_size" json:"pool_size"`
	// Retry overrides the backoff schedule for connection checks.
	Retry retry.Policy `yaml:"retry" json:"retry"`
}

func driverName(driver string) (string, error) {
	switch driver {
	case "postgres", "postgresql":
		return "pgx", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("unsupported source driver %q", driver)
	}
}

// Connector owns the shared connection pool for one source database.
type Connector struct {
	db      *sql.DB
	retry   retry.Policy
	clock   retry.Clock
	onRetry func()
}

// Connect opens the pool. The database is not contacted until Check or
// the first query.
func Connect(cfg Config) (*Connector, error) {
	name, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", cfg.Driver, err)
	}
	if cfg.PoolSize > 0 {
		db.SetMaxOpenConns(cfg.PoolSize)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	policy := cfg.Retry
	if policy.MaxRetries == 0 && policy.BaseDelay == 0 {
		policy = retry.DefaultPolicy()
	}
	return &Connector{db: db, retry: policy, clock: retry.RealClock()}, nil
}

// WithClock substitutes the clock used for connection retry backoff.
func (c *Connector) WithClock(clock retry.Clock) *Connector {
	c.clock = clock
	return c
}

// WithRetryHook registers a callback invoked once per connection retry.
func (c *Connector) WithRetryHook(fn func()) *Connector {
	c.onRetry = fn
	return c
}

// Check verifies source reachability with retry. Exhausting the schedule
// returns an error wrapping ErrConnection.
func (c *Connector) Check(ctx context.Context) error {
	attempt := 0
	err := c.retry.Do(ctx, c.clock, func(ctx context.Context) error {
		if attempt > 0 && c.onRetry != nil {
			c.onRetry()
		}
		attempt++
		return c.db.PingContext(ctx)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// DefaultAcquireTimeout bounds how long a batch fetch waits for a
// pooled connection.
const DefaultAcquireTimeout = 30 * time.Second

// Acquire leases a connection from the pool, waiting at most
// DefaultAcquireTimeout. Connections are scoped to a single batch fetch,
// never held across a whole job.
func (c *Connector) Acquire(ctx context.Context) (*sql.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultAcquireTimeout)
	defer cancel()
	conn, err := c.db.Conn(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return conn, nil
}

// Release returns a leased connection to the pool.
func (c *Connector) Release(conn *sql.Conn) error {
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// DB exposes the pool for ad hoc queries.
func (c *Connector) DB() *sql.DB { return c.db }

// Close releases the pool.
func (c *Connector) Close() error { return c.db.Close() }
