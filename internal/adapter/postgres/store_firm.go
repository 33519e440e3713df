package postgres

import (
	"context"
	"fmt"

	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/firm"
)

const firmColumns = `id, name, code, status, plan,
	coalesce(database_host, ''), coalesce(database_name, ''), coalesce(conn_string, ''),
	provision_state, provisioned_at, created_at, updated_at`

func scanFirm(row interface{ Scan(...any) error }) (*firm.Firm, error) {
	var f firm.Firm
	err := row.Scan(&f.ID, &f.Name, &f.Code, &f.Status, &f.Plan,
		&f.DatabaseHost, &f.DatabaseName, &f.ConnString,
		&f.ProvisionState, &f.ProvisionedAt, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) CreateFirm(ctx context.Context, req firm.CreateRequest) (*firm.Firm, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO firms (name, code, plan) VALUES ($1, $2, $3)
		 RETURNING `+firmColumns,
		req.Name, req.Code, req.Plan)
	f, err := scanFirm(row)
	if err != nil {
		return nil, translateErr("create firm", err)
	}
	return f, nil
}

func (s *Store) GetFirm(ctx context.Context, id string) (*firm.Firm, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+firmColumns+` FROM firms WHERE id = $1`, id)
	f, err := scanFirm(row)
	if err != nil {
		return nil, translateErr("get firm "+id, err)
	}
	return f, nil
}

func (s *Store) GetFirmByCode(ctx context.Context, code string) (*firm.Firm, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+firmColumns+` FROM firms WHERE code = $1`, code)
	f, err := scanFirm(row)
	if err != nil {
		return nil, translateErr("get firm by code "+code, err)
	}
	return f, nil
}

func (s *Store) ListFirms(ctx context.Context) ([]firm.Firm, error) {
	return s.listFirms(ctx, `SELECT `+firmColumns+` FROM firms ORDER BY created_at ASC`)
}

// ListReadyFirms returns active firms whose databases are fully provisioned:
// the fleet migration population.
func (s *Store) ListReadyFirms(ctx context.Context) ([]firm.Firm, error) {
	return s.listFirms(ctx,
		`SELECT `+firmColumns+` FROM firms
		 WHERE status = 'active' AND provision_state = 'ready'
		 ORDER BY created_at ASC`)
}

func (s *Store) listFirms(ctx context.Context, query string) ([]firm.Firm, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list firms: %w", err)
	}
	defer rows.Close()

	var firms []firm.Firm
	for rows.Next() {
		f, err := scanFirm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan firm: %w", err)
		}
		firms = append(firms, *f)
	}
	return firms, rows.Err()
}

func (s *Store) UpdateFirmStatus(ctx context.Context, id string, status firm.Status) error {
	if !firm.ValidStatuses[status] {
		return fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE firms SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update firm status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update firm status %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetFirmProvisionState advances the provisioning state machine. A non-empty
// expect makes the transition conditional so a second provisioning attempt
// loses cleanly instead of re-running external side effects.
func (s *Store) SetFirmProvisionState(ctx context.Context, id string, expect, next firm.ProvisionState) error {
	var tagRows int64
	if expect == "" {
		tag, err := s.pool.Exec(ctx,
			`UPDATE firms SET provision_state = $2, updated_at = now() WHERE id = $1`,
			id, next)
		if err != nil {
			return fmt.Errorf("set provision state %s: %w", id, err)
		}
		tagRows = tag.RowsAffected()
	} else {
		tag, err := s.pool.Exec(ctx,
			`UPDATE firms SET provision_state = $3, updated_at = now()
			 WHERE id = $1 AND provision_state = $2`,
			id, expect, next)
		if err != nil {
			return fmt.Errorf("set provision state %s: %w", id, err)
		}
		tagRows = tag.RowsAffected()
	}

	if tagRows == 0 {
		if _, err := s.GetFirm(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("set provision state %s: state is not %q: %w", id, expect, domain.ErrConflict)
	}
	return nil
}

// SetFirmConnection persists the connection coordinates and provisioning
// state in one statement. Either all coordinates land or none do.
func (s *Store) SetFirmConnection(ctx context.Context, id, host, dbName, sealedConnString string, state firm.ProvisionState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE firms
		 SET database_host = $2, database_name = $3, conn_string = $4,
		     provision_state = $5, provisioned_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, host, dbName, sealedConnString, state)
	if err != nil {
		return fmt.Errorf("set firm connection %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set firm connection %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// RecordFirmMigration appends one per-firm fleet migration result row.
func (s *Store) RecordFirmMigration(ctx context.Context, firmID string, ok bool, detail string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO firm_migrations (firm_id, ok, detail) VALUES ($1, $2, $3)`,
		firmID, ok, detail)
	if err != nil {
		return fmt.Errorf("record firm migration %s: %w", firmID, err)
	}
	return nil
}
