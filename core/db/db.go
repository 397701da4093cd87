// Package db opens the read-only pool over the debt records database. The
// assistant never writes there; the records belong to the billing system.
package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns int32 = 10
	defaultMinConns int32 = 1
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	StatementTimeout time.Duration // enforced by Postgres on every statement
}

// Enabled reports whether a records database is configured at all.
func (c Config) Enabled() bool {
	return c.DSN != ""
}

// poolConfig applies pool sizing and session parameters to the parsed DSN.
// Sessions default to read-only transactions.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse records dsn: %w", err)
	}

	pc.MaxConns = defaultMaxConns
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	pc.MinConns = min(defaultMinConns, pc.MaxConns)
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}

	params := pc.ConnConfig.RuntimeParams
	params["default_transaction_read_only"] = "on"
	params["application_name"] = "ai-virtual-assistant"
	if c.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10)
	}
	return pc, nil
}

type DB struct {
	pool *pgxpool.Pool
}

// New opens the pool and pings it once.
func New(ctx context.Context, cfg Config) (*DB, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open records pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping records db: %w", err)
	}
	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Query satisfies store.Querier.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}
