package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/firmsync/tenantcore/internal/domain"
	"github.com/firmsync/tenantcore/internal/domain/audit"
	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/domain/ghost"
	"github.com/firmsync/tenantcore/internal/domain/user"
	portaudit "github.com/firmsync/tenantcore/internal/port/audit"
)

type tenantCtxKey struct{}

// TenantContext is the tenant-scoped query context attached to a request
// after the gate grants access. It is owned by the request and never
// persisted.
type TenantContext struct {
	FirmID        string
	FirmCode      string
	Firm          *firm.Firm
	IsAdminAccess bool
}

// TenantFromContext returns the tenant context, or nil before the gate ran.
func TenantFromContext(ctx context.Context) *TenantContext {
	tc, _ := ctx.Value(tenantCtxKey{}).(*TenantContext)
	return tc
}

// FirmDirectory is the firm lookup consumed by the gate.
type FirmDirectory interface {
	GetFirmByCode(ctx context.Context, code string) (*firm.Firm, error)
}

// GhostGate lists the currently active ghost sessions for an admin.
type GhostGate interface {
	ListActiveGhostSessions(ctx context.Context, adminID string) ([]ghost.Session, error)
}

// GateMetrics receives gate decisions. Implementations must be nil-safe to
// omit; see the otel adapter for the production implementation glue.
type GateMetrics interface {
	AccessGranted(ctx context.Context, adminAccess bool)
	AccessDenied(ctx context.Context, code string)
}

// RequireTenantAccess gates every request addressed to a tenant-scoped route
// (mounted with a {firmCode} URL parameter). Validation is strictly ordered
// and short-circuiting: format, authentication, firm resolution, membership,
// ghost session. On success it attaches the TenantContext and emits a
// granted audit event; every denial is audited too.
func RequireTenantAccess(dir FirmDirectory, ghosts GhostGate, sink portaudit.Sink, metrics GateMetrics) func(http.Handler) http.Handler {
	g := &gate{dir: dir, ghosts: ghosts, sink: sink, metrics: metrics, now: time.Now}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

type gate struct {
	dir     FirmDirectory
	ghosts  GhostGate
	sink    portaudit.Sink
	metrics GateMetrics
	now     func() time.Time
}

func (g *gate) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	code := chi.URLParam(r, "firmCode")
	if code == "" {
		g.deny(w, r, nil, nil, http.StatusBadRequest, CodeMissingFirmCode, "firm code is required")
		return
	}
	if !firm.ValidateCode(code) {
		g.deny(w, r, nil, nil, http.StatusBadRequest, CodeInvalidFirmCodeFormat, "firm code contains invalid characters")
		return
	}

	principal := UserFromContext(r.Context())
	if principal == nil {
		g.deny(w, r, nil, nil, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
		return
	}

	f, err := g.dir.GetFirmByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			g.deny(w, r, principal, nil, http.StatusNotFound, CodeFirmNotFound, "firm not found")
			return
		}
		g.internalError(w, r, principal)
		return
	}

	switch f.Status {
	case firm.StatusActive:
	case firm.StatusSuspended:
		g.deny(w, r, principal, f, http.StatusForbidden, CodeFirmSuspended, "firm is suspended")
		return
	default:
		// Inactive firms are indistinguishable from unknown ones.
		g.deny(w, r, principal, f, http.StatusNotFound, CodeFirmNotFound, "firm not found")
		return
	}

	isMember := principal.FirmID == f.ID
	if !isMember && !principal.Role.IsPlatformAdmin() {
		g.deny(w, r, principal, f, http.StatusForbidden, CodeTenantAccessDenied, "not a member of this firm")
		return
	}

	adminAccess := false
	if !isMember {
		// Platform admin crossing a firm boundary: an active ghost session
		// for exactly this firm is required, regardless of role.
		sessions, err := g.ghosts.ListActiveGhostSessions(r.Context(), principal.ID)
		if err != nil {
			g.internalError(w, r, principal)
			return
		}
		now := g.now()
		granted := false
		for i := range sessions {
			if sessions[i].TargetFirmID == f.ID && sessions[i].ActiveAt(now) {
				granted = true
				break
			}
		}
		if !granted {
			g.deny(w, r, principal, f, http.StatusForbidden, CodeGhostSessionRequired, "active ghost session required for cross-firm access")
			return
		}
		adminAccess = true
	}

	tc := &TenantContext{
		FirmID:        f.ID,
		FirmCode:      f.Code,
		Firm:          f,
		IsAdminAccess: adminAccess,
	}

	g.record(r, principal, f, audit.DecisionGranted, "", adminAccess)
	if g.metrics != nil {
		g.metrics.AccessGranted(r.Context(), adminAccess)
	}

	ctx := context.WithValue(r.Context(), tenantCtxKey{}, tc)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// deny writes the coded response and audits the decision. Failures before
// the principal is known are not auditable per-principal and carry nil.
func (g *gate) deny(w http.ResponseWriter, r *http.Request, principal *user.User, f *firm.Firm, status int, code, msg string) {
	if principal != nil {
		g.record(r, principal, f, audit.DecisionDenied, code, false)
	}
	if g.metrics != nil {
		g.metrics.AccessDenied(r.Context(), code)
	}
	writeCoded(w, status, code, msg)
}

func (g *gate) internalError(w http.ResponseWriter, r *http.Request, principal *user.User) {
	if principal != nil {
		g.record(r, principal, nil, audit.DecisionDenied, CodeTenantValidationError, false)
	}
	if g.metrics != nil {
		g.metrics.AccessDenied(r.Context(), CodeTenantValidationError)
	}
	writeCoded(w, http.StatusInternalServerError, CodeTenantValidationError, "tenant validation failed")
}

func (g *gate) record(r *http.Request, principal *user.User, f *firm.Firm, decision audit.Decision, reason string, adminAccess bool) {
	if g.sink == nil {
		return
	}

	ev := audit.Event{
		ID:            uuid.NewString(),
		Time:          g.now().UTC(),
		SourceIP:      sourceIP(r),
		URL:           r.URL.String(),
		Decision:      decision,
		Reason:        reason,
		IsAdminAccess: adminAccess,
	}
	if principal != nil {
		ev.PrincipalID = principal.ID
		ev.PrincipalEmail = principal.Email
		ev.PrincipalRole = string(principal.Role)
		ev.PrincipalFirmID = principal.FirmID
	}
	ev.TargetFirmCode = chi.URLParam(r, "firmCode")
	if f != nil {
		ev.TargetFirmID = f.ID
		ev.TargetFirmCode = f.Code
		ev.TargetFirmName = f.Name
	}

	// Sink failures never fail the request; the fanout sink logs them.
	_ = g.sink.Record(r.Context(), ev)
}

// sourceIP extracts the client IP from RemoteAddr. Proxy headers are not
// trusted here; audit consumers needing the edge IP read it from the
// upstream proxy's own logs.
func sourceIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
