package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stackwise/nacl-manager/internal/service"
	"github.com/stackwise/nacl-manager/internal/storage"
)

// ReconcileHandler handles plan and reconcile endpoints.
type ReconcileHandler struct {
	store            storage.Storage
	reconcileService *service.ReconcileService
}

// NewReconcileHandler creates a new ReconcileHandler.
func NewReconcileHandler(store storage.Storage, reconcileService *service.ReconcileService) *ReconcileHandler {
	return &ReconcileHandler{store: store, reconcileService: reconcileService}
}

// Plan returns the desired-state plan for a workspace without applying it.
func (h *ReconcileHandler) Plan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workspace_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	plan, err := h.reconcileService.Plan(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// Reconcile forces an immediate reconcile of a workspace.
func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workspace_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	resp, err := h.reconcileService.ForceReconcile(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ListVersions lists the reconcile history of a workspace, newest first.
func (h *ReconcileHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workspace_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	versions, err := h.store.ListReconcileVersions(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, versions)
}

// GetVersion returns one reconcile version, including its rendered plan and
// recorded state snapshot.
func (h *ReconcileHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	version, err := h.store.GetReconcileVersion(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, version)
}
