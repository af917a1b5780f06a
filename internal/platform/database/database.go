// Package database manages the PostgreSQL pool and schema via pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultApplicationName tags server-side sessions in pg_stat_activity.
const DefaultApplicationName = "pai-progress"

// Options configures the connection pool. Zero values use defaults.
type Options struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// ApplicationName overrides the application_name runtime parameter. An
	// application_name given in the URL is kept when this is empty.
	ApplicationName string
}

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates a PostgreSQL connection URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

// PoolConfig builds a pgxpool config from opts.
func PoolConfig(opts Options) (*pgxpool.Config, error) {
	cfg, err := ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		cfg.MinConns = int32(opts.MinConns)
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	params := cfg.ConnConfig.RuntimeParams
	switch {
	case opts.ApplicationName != "":
		params["application_name"] = opts.ApplicationName
	case params["application_name"] == "":
		params["application_name"] = DefaultApplicationName
	}
	return cfg, nil
}

// New creates a pool and verifies connectivity.
func New(ctx context.Context, opts Options) (*DB, error) {
	cfg, err := PoolConfig(opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck verifies the database is reachable and its schema is current.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return err
	}
	pending, err := db.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d schema migrations pending, first %s", len(pending), pending[0].Version)
	}
	return nil
}
