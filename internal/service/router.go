package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/domain/user"
	"github.com/firmsync/tenantcore/internal/port/directory"
)

// TenantRouter resolves firm references to firms and routes scoped queries
// to the right physical database. It is the non-HTTP twin of the tenant
// gate: CLI commands and background jobs use the same membership rule.
type TenantRouter struct {
	dir     directory.Directory
	manager *ConnectionManager
}

// NewTenantRouter wires the router.
func NewTenantRouter(dir directory.Directory, manager *ConnectionManager) *TenantRouter {
	return &TenantRouter{dir: dir, manager: manager}
}

// Resolve maps a firm reference to its firm record. An explicit firmRef (ID
// or code) wins; with no firmRef the user's home firm is used. Resolve does
// not authorize -- callers still go through ValidateAccess. Unknown and
// inactive firms both come back as domain.ErrNotFound; suspended firms are
// reported distinctly so callers can surface the right denial.
func (r *TenantRouter) Resolve(ctx context.Context, firmRef, userID string) (*firm.Firm, error) {
	switch {
	case firmRef != "":
		f, err := r.lookupRef(ctx, firmRef)
		if err != nil {
			return nil, err
		}
		return checkFirmStatus(f)
	case userID != "":
		u, err := r.dir.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if u.FirmID == "" {
			return nil, fmt.Errorf("user %s has no home firm: %w", userID, domain.ErrNotFound)
		}
		f, err := r.dir.GetFirm(ctx, u.FirmID)
		if err != nil {
			return nil, err
		}
		return checkFirmStatus(f)
	default:
		return nil, fmt.Errorf("no firm reference: %w", domain.ErrNotFound)
	}
}

// lookupRef fetches by ID when the reference parses as a UUID, by code
// otherwise. Firm codes and UUIDs cannot collide: codes may contain
// underscores and UUIDs always parse, so the dispatch is unambiguous.
func (r *TenantRouter) lookupRef(ctx context.Context, ref string) (*firm.Firm, error) {
	if _, err := uuid.Parse(ref); err == nil {
		return r.dir.GetFirm(ctx, ref)
	}
	if !firm.ValidateCode(ref) {
		return nil, fmt.Errorf("firm code %q: %w", ref, domain.ErrValidation)
	}
	return r.dir.GetFirmByCode(ctx, ref)
}

func checkFirmStatus(f *firm.Firm) (*firm.Firm, error) {
	switch f.Status {
	case firm.StatusActive:
		return f, nil
	case firm.StatusSuspended:
		return nil, fmt.Errorf("firm %s: %w", f.Code, domain.ErrFirmSuspended)
	default:
		return nil, fmt.Errorf("firm %s: %w", f.Code, domain.ErrNotFound)
	}
}

// ValidateAccess is the coarse membership check shared with the HTTP gate:
// members of the firm and platform admins may act, everyone else is denied.
// It deliberately stops at the same role/firm comparison the gate applies;
// the ghost-session requirement for cross-firm admin access is an HTTP-layer
// concern enforced on top of this by the gate itself.
func (r *TenantRouter) ValidateAccess(_ context.Context, u *user.User, target *firm.Firm) error {
	if u == nil {
		return domain.ErrAccessDenied
	}
	if u.FirmID == target.ID || u.Role.IsPlatformAdmin() {
		return nil
	}
	return fmt.Errorf("user %s is not a member of firm %s: %w", u.ID, target.Code, domain.ErrAccessDenied)
}

// QueryTenantData runs a read against the firm's database with the firm
// scope applied. filters are ANDed equality conditions; the firm_id filter
// the caller passes is always overwritten with the routed firm's ID.
func (r *TenantRouter) QueryTenantData(ctx context.Context, f *firm.Firm, table string, filters map[string]any) ([]map[string]any, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}

	pool, err := r.manager.GetTenantConnection(ctx, f.ID)
	if err != nil {
		return nil, err
	}

	scoped := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		if err := validateIdentifier(k); err != nil {
			return nil, err
		}
		scoped[k] = v
	}
	scoped["firm_id"] = f.ID

	cols := make([]string, 0, len(scoped))
	for k := range scoped {
		cols = append(cols, k)
	}
	// Deterministic order keeps queries cacheable by the database.
	sort.Strings(cols)

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(table)
	sb.WriteString(" WHERE ")
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		fmt.Fprintf(&sb, "%s = $%d", col, i+1)
		args = append(args, scoped[col])
	}

	return pool.Query(ctx, sb.String(), args...)
}

// ExecTenantData runs a scoped write and returns the affected row count.
// The statement must already carry its firm_id predicate; this is the
// low-level escape hatch for handlers composing their own SQL.
func (r *TenantRouter) ExecTenantData(ctx context.Context, f *firm.Firm, sql string, args ...any) (int64, error) {
	pool, err := r.manager.GetTenantConnection(ctx, f.ID)
	if err != nil {
		return 0, err
	}
	return pool.Exec(ctx, sql, args...)
}

// validateIdentifier rejects anything that is not a plain SQL identifier.
// Filters and table names reach this point from code, not users, but the
// check keeps a future mistake from becoming an injection.
func validateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("empty identifier: %w", domain.ErrValidation)
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return fmt.Errorf("identifier %q: %w", s, domain.ErrValidation)
			}
		default:
			return fmt.Errorf("identifier %q: %w", s, domain.ErrValidation)
		}
	}
	return nil
}
