package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/firmsync/tenantcore/internal/domain"
)

// Store implements directory.Store using the central PostgreSQL database.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given central connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// translateErr maps driver-level errors onto domain sentinels.
func translateErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case strings.Contains(err.Error(), "SQLSTATE 23505"):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
