package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stackwise/nacl-manager/internal/api/handler"
	"github.com/stackwise/nacl-manager/internal/api/middleware"
	"github.com/stackwise/nacl-manager/internal/auth"
	"github.com/stackwise/nacl-manager/internal/service"
	"github.com/stackwise/nacl-manager/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	reconcileService *service.ReconcileService,
	bootstrapKey string,
	oidcVerifier *auth.OIDCVerifier,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(store, bootstrapKey, oidcVerifier))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Workspaces
		wsHandler := handler.NewWorkspaceHandler(store, reconcileService)
		r.Post("/workspaces", wsHandler.Create)
		r.Get("/workspaces", wsHandler.List)

		recHandler := handler.NewReconcileHandler(store, reconcileService)
		r.Route("/workspaces/{workspace_id}", func(r chi.Router) {
			r.Get("/", wsHandler.Get)
			r.Put("/", wsHandler.Update)
			r.Delete("/", wsHandler.Delete)

			// Declarative spec management
			r.Get("/spec", wsHandler.GetSpec)
			r.Put("/spec", wsHandler.ReplaceSpec)

			// Plan and reconcile
			r.Get("/plan", recHandler.Plan)
			r.Post("/reconcile", recHandler.Reconcile)
			r.Get("/versions", recHandler.ListVersions)
		})

		// Version lookup by ID
		r.Get("/versions/{id}", recHandler.GetVersion)
	})

	return r
}
