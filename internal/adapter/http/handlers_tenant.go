package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/firmsync/tenantcore/internal/middleware"
)

// tenantRequest pulls the tenant and query scope established by the
// middleware chain. Both are guaranteed present on tenant routes; a miss
// means the route is mounted outside the chain.
func tenantRequest(w http.ResponseWriter, r *http.Request) (*middleware.TenantContext, *middleware.Scope, bool) {
	tc := middleware.TenantFromContext(r.Context())
	scope := middleware.ScopeFromContext(r.Context())
	if tc == nil || scope == nil {
		writeError(w, http.StatusInternalServerError, "tenant context missing")
		return nil, nil, false
	}
	return tc, scope, true
}

// ListClients handles GET /api/tenant/{firmCode}/clients.
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	tc, _, ok := tenantRequest(w, r)
	if !ok {
		return
	}

	filters := map[string]any{}
	if status := r.URL.Query().Get("status"); status != "" {
		filters["status"] = status
	}

	rows, err := h.Router.QueryTenantData(r.Context(), tc.Firm, "clients", filters)
	if err != nil {
		writeDomainError(w, err, "clients not available")
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type createClientRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateClient handles POST /api/tenant/{firmCode}/clients.
func (h *Handlers) CreateClient(w http.ResponseWriter, r *http.Request) {
	tc, scope, ok := tenantRequest(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[createClientRequest](w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "client name is required")
		return
	}

	id := uuid.NewString()
	_, err := h.Router.ExecTenantData(r.Context(), tc.Firm,
		`INSERT INTO clients (id, firm_id, name, email, status, created_at) VALUES ($1, $2, $3, $4, 'active', $5)`,
		id, scope.FirmID, req.Name, req.Email, time.Now().UTC(),
	)
	if err != nil {
		writeDomainError(w, err, "client not created")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// ListMatters handles GET /api/tenant/{firmCode}/matters.
func (h *Handlers) ListMatters(w http.ResponseWriter, r *http.Request) {
	tc, _, ok := tenantRequest(w, r)
	if !ok {
		return
	}

	filters := map[string]any{}
	if clientID := r.URL.Query().Get("client_id"); clientID != "" {
		filters["client_id"] = clientID
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filters["status"] = status
	}

	rows, err := h.Router.QueryTenantData(r.Context(), tc.Firm, "matters", filters)
	if err != nil {
		writeDomainError(w, err, "matters not available")
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type createMatterRequest struct {
	ClientID string `json:"client_id"`
	Title    string `json:"title"`
}

// CreateMatter handles POST /api/tenant/{firmCode}/matters.
func (h *Handlers) CreateMatter(w http.ResponseWriter, r *http.Request) {
	tc, scope, ok := tenantRequest(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[createMatterRequest](w, r)
	if !ok {
		return
	}
	if req.ClientID == "" || strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "client_id and title are required")
		return
	}

	id := uuid.NewString()
	_, err := h.Router.ExecTenantData(r.Context(), tc.Firm,
		`INSERT INTO matters (id, firm_id, client_id, title, status, opened_at) VALUES ($1, $2, $3, $4, 'open', $5)`,
		id, scope.FirmID, req.ClientID, req.Title, time.Now().UTC(),
	)
	if err != nil {
		writeDomainError(w, err, "matter not created")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}
