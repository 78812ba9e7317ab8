/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to
  handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*           Users, per-user listings, cascading removal
  /api/accounts/*        Account lifecycle and hierarchy
  /api/transactions/*    Ledger mutations
  /api/categories        Transaction categories
  /api/asset-types       Investment asset types
  /api/items             Household items
  /api/snapshot          Export / reconciliation import

SECURITY NOTE:
  Actor attribution comes from the X-Actor-ID header with no
  verification. Run behind an authenticating proxy in production.

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
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Delete("/{id}", h.RemoveUser)
			r.Get("/{id}/accounts", h.ListUserAccounts)
			r.Get("/{id}/transactions", h.ListUserTransactions)
			r.Get("/{id}/assets", h.ListUserAssets)
			r.Post("/{id}/assets", h.CreateAsset)
			r.Get("/{id}/budgets", h.ListUserBudgets)
			r.Post("/{id}/budgets", h.CreateBudget)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Put("/{id}", h.RenameAccount)
			r.Put("/{id}/parent", h.SetAccountParent)
			r.Delete("/{id}", h.DeleteAccount)
			r.Get("/{id}/transactions", h.ListAccountTransactions)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.CreateTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
			r.Post("/bulk-delete", h.BulkDeleteTransactions)
		})

		// Reference data routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})
		r.Route("/asset-types", func(r chi.Router) {
			r.Get("/", h.ListAssetTypes)
			r.Post("/", h.CreateAssetType)
		})
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
		})

		// Snapshot routes
		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/", h.ExportSnapshot)
			r.Post("/", h.ImportSnapshot)
		})
	})

	return r
}
