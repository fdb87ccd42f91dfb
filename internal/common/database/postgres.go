// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rental-process/internal/common/config"

	_ "github.com/lib/pq"
)

// Tables the process store needs before it can serve requests.
var requiredTables = []string{"rental_processes", "audit_log"}

// PostgresClient holds the pooled connection backing the process store.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a pooled lib/pq connection. It does not dial.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Ready pings the server and reports any process store table that is missing,
// which usually means migrations have not run.
func (c *PostgresClient) Ready(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return err
	}
	for _, table := range requiredTables {
		var present bool
		err := c.DB.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&present)
		if err != nil {
			return fmt.Errorf("postgres schema check %s: %w", table, err)
		}
		if !present {
			return fmt.Errorf("postgres table %s missing, run migrate up", table)
		}
	}
	return nil
}

// PoolStats summarises the connection pool for log fields.
func (c *PostgresClient) PoolStats() map[string]interface{} {
	s := c.DB.Stats()
	return map[string]interface{}{
		"open":       s.OpenConnections,
		"in_use":     s.InUse,
		"idle":       s.Idle,
		"wait_count": s.WaitCount,
	}
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
