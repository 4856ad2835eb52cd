/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the operator UI

ROUTE GROUPS:
  /api/projects/*     Projects and their allocations, weighings, trips
  /api/allocations/*  Allocation authorizations and remaining balances
  /api/weighings/*    Weighing record saves and deletes
  /api/attempts/*     Overrun confirmation protocol
  /api/notices        Operator notices
  /api/reconcile/*    Divergence sweep

SECURITY NOTE:
  No authentication middleware currently. Auth failures from the upstream
  service are surfaced through the gateway, not enforced here.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Project routes
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Put("/", h.SaveProject)
			r.Get("/{id}", h.GetProject)
			r.Post("/{id}/import", h.ImportProject)
			r.Get("/{id}/allocations", h.ListAllocations)
			r.Post("/{id}/allocations", h.CreateAllocation)
			r.Get("/{id}/weighings", h.ListWeighings)
			r.Get("/{id}/trips", h.ListTrips)
		})

		// Allocation routes
		r.Route("/allocations", func(r chi.Router) {
			r.Put("/{id}", h.ReplaceAuthorizations)
			r.Delete("/{id}", h.DeleteAllocation)
			r.Get("/{id}/remaining", h.GetRemaining)
		})

		// Weighing routes
		r.Route("/weighings", func(r chi.Router) {
			r.Post("/", h.CreateWeighing)
			r.Put("/{id}", h.UpdateWeighing)
			r.Delete("/{id}", h.DeleteWeighing)
		})

		// Overrun attempt routes
		r.Route("/attempts", func(r chi.Router) {
			r.Post("/{id}/confirm", h.ConfirmAttempt)
			r.Post("/{id}/cancel", h.CancelAttempt)
		})

		// Notice routes
		r.Get("/notices", h.ListNotices)

		// Reconciliation routes
		r.Post("/reconcile/run", h.RunReconcile)
	})

	return r
}
