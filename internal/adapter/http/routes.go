package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/firmsync/tenantcore/internal/middleware"
	portaudit "github.com/firmsync/tenantcore/internal/port/audit"
)

// MountRoutes registers all API routes on the given chi router. The tenant
// gate only guards /api/tenant; admin routes are firm-agnostic and guarded
// by role instead.
func MountRoutes(r chi.Router, h *Handlers, dir middleware.FirmDirectory, ghosts middleware.GhostGate, sink portaudit.Sink, gateMetrics middleware.GateMetrics) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.RequirePlatformAdmin())

		r.Get("/firms", h.ListFirms)
		r.Post("/firms", h.CreateFirm)
		r.Get("/firms/{id}", h.GetFirm)
		r.Put("/firms/{id}/status", h.UpdateFirmStatus)
		r.Post("/firms/{id}/provision", h.ProvisionFirm)

		r.Post("/migrations/run", h.RunFleetMigration)

		r.Post("/users", h.CreateUser)

		r.Get("/ghost-sessions", h.ListGhostSessions)
		r.Post("/ghost-sessions", h.StartGhostSession)
		r.Delete("/ghost-sessions/{firmID}", h.EndGhostSession)
	})

	r.Route("/api/tenant/{firmCode}", func(r chi.Router) {
		r.Use(middleware.RequireTenantAccess(dir, ghosts, sink, gateMetrics))
		r.Use(middleware.TenantScope())

		r.Get("/clients", h.ListClients)
		r.Post("/clients", h.CreateClient)
		r.Get("/matters", h.ListMatters)
		r.Post("/matters", h.CreateMatter)
	})
}
