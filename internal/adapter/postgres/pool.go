package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/firmsync/tenantcore/internal/config"
	"github.com/firmsync/tenantcore/internal/port/database"
)

// tenantPool adapts a pgxpool.Pool to the database.TenantPool port.
type tenantPool struct {
	pool *pgxpool.Pool
}

// NewTenantDialer returns a Dialer that opens bounded per-firm pools with the
// given settings. Idle and lifetime limits come from config so abandoned firm
// pools shrink to zero connections.
func NewTenantDialer(cfg config.TenantPool) database.Dialer {
	return func(ctx context.Context, dsn string) (database.TenantPool, error) {
		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse tenant dsn: %w", err)
		}

		poolCfg.MaxConns = cfg.MaxConns
		poolCfg.MinConns = cfg.MinConns
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("create tenant pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping tenant db: %w", err)
		}

		return &tenantPool{pool: pool}, nil
	}
}

func (p *tenantPool) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("tenant query: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return out, nil
}

func (p *tenantPool) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("tenant exec: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *tenantPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *tenantPool) Close() {
	p.pool.Close()
}
