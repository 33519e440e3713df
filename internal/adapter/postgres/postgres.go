// Package postgres provides the central routing store, per-firm connection
// pools, and the migration runners.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql (needed by goose)
	"github.com/pressly/goose/v3"

	"github.com/firmsync/tenantcore/internal/config"
)

//go:embed migrations/*.sql
var centralMigrations embed.FS

//go:embed tenantschema/*.sql
var tenantBaseline embed.FS

// NewPool creates the central pgxpool connection pool.
func NewPool(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

// RunCentralMigrations applies all pending goose migrations to the central
// routing database.
func RunCentralMigrations(ctx context.Context, dsn string) error {
	return runMigrations(ctx, dsn, centralMigrations, "migrations")
}

// RunTenantBaseline applies the tenant baseline schema to a freshly
// provisioned per-firm database. Satisfies database.Migrator.
func RunTenantBaseline(ctx context.Context, dsn string) error {
	return runMigrations(ctx, dsn, tenantBaseline, "tenantschema")
}

// runMigrations uses goose's provider API rather than its package-level
// functions: the fleet migrator runs this from many goroutines at once,
// and the provider keeps the migration FS and dialect per instance
// instead of in mutable package globals.
func runMigrations(ctx context.Context, dsn string, fsys embed.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return fmt.Errorf("migration fs %s: %w", dir, err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
