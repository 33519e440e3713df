package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/domain/user"
	"github.com/firmsync/tenantcore/internal/port/directory"
)

// FirmService manages the firm registry in the central store.
type FirmService struct {
	store  directory.Store
	cached *CachedDirectory
	log    *slog.Logger
}

// NewFirmService wires the service. cached may be nil when no firm-lookup
// cache is in front of the store.
func NewFirmService(store directory.Store, cached *CachedDirectory, log *slog.Logger) *FirmService {
	return &FirmService{store: store, cached: cached, log: log}
}

// Create validates and registers a new firm. The firm starts unprovisioned;
// ProvisionFirmDatabase makes it servable.
func (s *FirmService) Create(ctx context.Context, req firm.CreateRequest) (*firm.Firm, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f, err := s.store.CreateFirm(ctx, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("firm created", "firm_id", f.ID, "firm_code", f.Code, "plan", f.Plan)
	return f, nil
}

// Get returns a firm by ID.
func (s *FirmService) Get(ctx context.Context, id string) (*firm.Firm, error) {
	return s.store.GetFirm(ctx, id)
}

// List returns all firms.
func (s *FirmService) List(ctx context.Context) ([]firm.Firm, error) {
	return s.store.ListFirms(ctx)
}

// UpdateStatus transitions a firm between lifecycle statuses and drops any
// cached lookups so the change takes effect on the next request.
func (s *FirmService) UpdateStatus(ctx context.Context, id string, status firm.Status) (*firm.Firm, error) {
	if !firm.ValidStatuses[status] {
		return nil, fmt.Errorf("%w: invalid firm status %q", domain.ErrValidation, status)
	}

	f, err := s.store.GetFirm(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateFirmStatus(ctx, id, status); err != nil {
		return nil, err
	}
	if s.cached != nil {
		s.cached.Invalidate(ctx, f)
	}

	s.log.Info("firm status changed", "firm_id", id, "firm_code", f.Code, "from", f.Status, "to", status)
	return s.store.GetFirm(ctx, id)
}

// CreateUser registers a user in the central directory.
func (s *FirmService) CreateUser(ctx context.Context, req user.CreateRequest) (*user.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", "user_id", u.ID, "role", u.Role, "firm_id", u.FirmID)
	return u, nil
}
