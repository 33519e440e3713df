// Package directory defines the port interface for the central firm directory.
package directory

import (
	"context"
	"time"

	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/domain/ghost"
	"github.com/firmsync/tenantcore/internal/domain/user"
)

// Directory is the read surface consumed by the tenant gate and router.
// Lookups return domain.ErrNotFound when no matching record exists.
type Directory interface {
	GetFirm(ctx context.Context, id string) (*firm.Firm, error)
	GetFirmByCode(ctx context.Context, code string) (*firm.Firm, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	ListActiveGhostSessions(ctx context.Context, adminID string) ([]ghost.Session, error)
}

// Store is the full central-store surface, including the privileged write
// paths used by provisioning, fleet migrations, and ghost session management.
type Store interface {
	Directory

	CreateFirm(ctx context.Context, req firm.CreateRequest) (*firm.Firm, error)
	ListFirms(ctx context.Context) ([]firm.Firm, error)
	ListReadyFirms(ctx context.Context) ([]firm.Firm, error)
	UpdateFirmStatus(ctx context.Context, id string, status firm.Status) error

	// SetFirmProvisionState advances the provisioning state machine. When
	// expect is non-empty the update only applies if the current state
	// matches, so provisioning is safe to call at most once per firm.
	SetFirmProvisionState(ctx context.Context, id string, expect, next firm.ProvisionState) error

	// SetFirmConnection persists connection coordinates and the given state
	// in a single statement, so a failure can never leave half-written
	// coordinates behind.
	SetFirmConnection(ctx context.Context, id, host, dbName, sealedConnString string, state firm.ProvisionState) error

	CreateUser(ctx context.Context, req user.CreateRequest) (*user.User, error)

	StartGhostSession(ctx context.Context, adminID, targetFirmID, reason string, ttl time.Duration) (*ghost.Session, error)
	EndGhostSession(ctx context.Context, adminID, targetFirmID string) error
	EndGhostSessionsForAdmin(ctx context.Context, adminID string) error

	RecordFirmMigration(ctx context.Context, firmID string, ok bool, detail string) error
}
