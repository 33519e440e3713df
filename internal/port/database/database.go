// Package database defines the port interfaces for per-firm database access.
package database

import "context"

// TenantPool is a pooled connection bound to exactly one firm's physical
// database. Implementations are safe for concurrent use by many in-flight
// requests. Rows are returned as column-name maps so callers above the
// adapter layer never touch driver types.
type TenantPool interface {
	Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error)
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Dialer opens a new bounded TenantPool for the given DSN. Injected into the
// ConnectionManager so pool creation can be stubbed in tests.
type Dialer func(ctx context.Context, dsn string) (TenantPool, error)

// Migrator applies the tenant baseline schema to a freshly provisioned
// database identified by dsn.
type Migrator func(ctx context.Context, dsn string) error
