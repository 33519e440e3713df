package postgres

import (
	"context"
	"fmt"

	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/user"
)

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, role, coalesce(firm_id::text, ''), enabled, created_at, updated_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.FirmID, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translateErr("get user "+id, err)
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, req user.CreateRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	var firmID any
	if req.FirmID != "" {
		firmID = req.FirmID
	}

	var u user.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, role, firm_id) VALUES ($1, $2, $3, $4)
		 RETURNING id, email, name, role, coalesce(firm_id::text, ''), enabled, created_at, updated_at`,
		req.Email, req.Name, req.Role, firmID,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.FirmID, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translateErr("create user", err)
	}
	return &u, nil
}
