package http

import (
	"context"
	"net/http"

	"github.com/firmsync/tenantcore/internal/domain/firm"
	"github.com/firmsync/tenantcore/internal/domain/ghost"
	"github.com/firmsync/tenantcore/internal/domain/user"
	"github.com/firmsync/tenantcore/internal/middleware"
	"github.com/firmsync/tenantcore/internal/service"
)

// Pinger reports whether the central database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Firms   *service.FirmService
	Manager *service.ConnectionManager
	Router  *service.TenantRouter
	Ghosts  *service.GhostService
	Central Pinger
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /health/ready. It fails when the central store is
// unreachable; per-firm databases are not probed here.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Central != nil {
		if err := h.Central.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "central database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ListFirms handles GET /api/v1/admin/firms.
func (h *Handlers) ListFirms(w http.ResponseWriter, r *http.Request) {
	firms, err := h.Firms.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, firms)
}

// CreateFirm handles POST /api/v1/admin/firms.
func (h *Handlers) CreateFirm(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[firm.CreateRequest](w, r)
	if !ok {
		return
	}
	f, err := h.Firms.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "firm not created")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// GetFirm handles GET /api/v1/admin/firms/{id}.
func (h *Handlers) GetFirm(w http.ResponseWriter, r *http.Request) {
	f, err := h.Firms.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "firm not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// UpdateFirmStatus handles PUT /api/v1/admin/firms/{id}/status.
func (h *Handlers) UpdateFirmStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Status firm.Status `json:"status"`
	}](w, r)
	if !ok {
		return
	}
	f, err := h.Firms.UpdateStatus(r.Context(), urlParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, err, "firm not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// ProvisionFirm handles POST /api/v1/admin/firms/{id}/provision. The call is
// synchronous; a second call while provisioning runs, or after it succeeded,
// gets a conflict.
func (h *Handlers) ProvisionFirm(w http.ResponseWriter, r *http.Request) {
	f, err := h.Manager.ProvisionFirmDatabase(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "firm not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// RunFleetMigration handles POST /api/v1/admin/migrations/run.
func (h *Handlers) RunFleetMigration(w http.ResponseWriter, r *http.Request) {
	res, err := h.Manager.RunMigrationOnAllFirms(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CreateUser handles POST /api/v1/admin/users.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.CreateRequest](w, r)
	if !ok {
		return
	}
	u, err := h.Firms.CreateUser(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "user not created")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// StartGhostSession handles POST /api/v1/admin/ghost-sessions. The admin is
// always the authenticated principal; nobody starts sessions for others.
func (h *Handlers) StartGhostSession(w http.ResponseWriter, r *http.Request) {
	principal := middleware.UserFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	req, ok := readJSON[ghost.StartRequest](w, r)
	if !ok {
		return
	}
	req.AdminID = principal.ID

	s, err := h.Ghosts.Start(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "target firm not found")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListGhostSessions handles GET /api/v1/admin/ghost-sessions.
func (h *Handlers) ListGhostSessions(w http.ResponseWriter, r *http.Request) {
	principal := middleware.UserFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	sessions, err := h.Ghosts.ListActive(r.Context(), principal.ID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if sessions == nil {
		sessions = []ghost.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// EndGhostSession handles DELETE /api/v1/admin/ghost-sessions/{firmID}.
func (h *Handlers) EndGhostSession(w http.ResponseWriter, r *http.Request) {
	principal := middleware.UserFromContext(r.Context())
	if principal == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	if err := h.Ghosts.End(r.Context(), principal.ID, urlParam(r, "firmID")); err != nil {
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
