package middleware

import (
	"context"
	"net/http"
)

type scopeCtxKey struct{}

// Scope carries the firm identity every tenant-scoped query must be tagged
// with. Handlers merge it into their filters via AddFirmScope rather than
// reading FirmID directly, so the scoping cannot be forgotten piecemeal.
type Scope struct {
	FirmID   string
	FirmCode string
}

// AddFirmScope returns a copy of filters with the firm_id scope applied.
// The input map is never mutated; a nil map is allowed.
func (s Scope) AddFirmScope(filters map[string]any) map[string]any {
	scoped := make(map[string]any, len(filters)+1)
	for k, v := range filters {
		scoped[k] = v
	}
	scoped["firm_id"] = s.FirmID
	return scoped
}

// ScopeFromContext returns the request scope, or nil when TenantScope
// did not run.
func ScopeFromContext(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeCtxKey{}).(*Scope)
	return s
}

// TenantScope derives the query scope from the tenant context established
// by RequireTenantAccess. It fails closed: a tenant route reached without
// the gate is a wiring bug and gets a 500, never an unscoped query.
func TenantScope() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := TenantFromContext(r.Context())
			if tc == nil {
				writeCoded(w, http.StatusInternalServerError, CodeMissingTenantContext, "tenant context missing")
				return
			}
			scope := &Scope{FirmID: tc.FirmID, FirmCode: tc.FirmCode}
			ctx := context.WithValue(r.Context(), scopeCtxKey{}, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
