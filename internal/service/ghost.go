package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/ghost"
	"github.com/firmsync/tenantcore/internal/port/directory"
)

// GhostService manages ghost sessions, the time-boxed grants that let a
// platform admin act inside a firm they do not belong to. Every grant and
// revocation is logged; the audit trail for the accesses themselves is
// emitted by the tenant gate.
type GhostService struct {
	store directory.Store
	ttl   time.Duration
	log   *slog.Logger
}

// NewGhostService wires the service. ttl bounds every session; there is no
// unlimited grant.
func NewGhostService(store directory.Store, ttl time.Duration, log *slog.Logger) *GhostService {
	return &GhostService{store: store, ttl: ttl, log: log}
}

// Start opens a ghost session for adminID into the target firm. The admin
// must hold a platform admin role and the target firm must exist. A reason
// is mandatory; it is what reviewers of the audit trail see.
func (s *GhostService) Start(ctx context.Context, req ghost.StartRequest) (*ghost.Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	admin, err := s.store.GetUser(ctx, req.AdminID)
	if err != nil {
		return nil, fmt.Errorf("admin %s: %w", req.AdminID, err)
	}
	if !admin.Role.IsPlatformAdmin() {
		return nil, fmt.Errorf("user %s has role %s: %w", admin.ID, admin.Role, domain.ErrAccessDenied)
	}

	target, err := s.store.GetFirm(ctx, req.TargetFirmID)
	if err != nil {
		return nil, fmt.Errorf("target firm %s: %w", req.TargetFirmID, err)
	}

	session, err := s.store.StartGhostSession(ctx, admin.ID, target.ID, req.Reason, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("start ghost session: %w", err)
	}

	s.log.Info("ghost session started",
		"session_id", session.ID,
		"admin_id", admin.ID,
		"admin_email", admin.Email,
		"target_firm_id", target.ID,
		"target_firm_code", target.Code,
		"reason", req.Reason,
		"expires_at", session.ExpiresAt,
	)
	return session, nil
}

// End revokes the admin's session for the given firm, effective on the next
// request. Ending a session that does not exist is not an error.
func (s *GhostService) End(ctx context.Context, adminID, targetFirmID string) error {
	if err := s.store.EndGhostSession(ctx, adminID, targetFirmID); err != nil {
		return fmt.Errorf("end ghost session: %w", err)
	}
	s.log.Info("ghost session ended", "admin_id", adminID, "target_firm_id", targetFirmID)
	return nil
}

// EndAllForAdmin revokes every active session held by the admin. Used when
// an admin is offboarded or their credentials are rotated.
func (s *GhostService) EndAllForAdmin(ctx context.Context, adminID string) error {
	if err := s.store.EndGhostSessionsForAdmin(ctx, adminID); err != nil {
		return fmt.Errorf("end ghost sessions for %s: %w", adminID, err)
	}
	s.log.Info("all ghost sessions ended", "admin_id", adminID)
	return nil
}

// ListActive returns the admin's currently active sessions.
func (s *GhostService) ListActive(ctx context.Context, adminID string) ([]ghost.Session, error) {
	return s.store.ListActiveGhostSessions(ctx, adminID)
}
