package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stackwise/nacl-manager/internal/domain"
	"github.com/stackwise/nacl-manager/internal/service"
	"github.com/stackwise/nacl-manager/internal/storage"
	"github.com/stackwise/nacl-manager/internal/validation"
)

// WorkspaceHandler handles workspace endpoints.
type WorkspaceHandler struct {
	store            storage.Storage
	reconcileService *service.ReconcileService
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(store storage.Storage, reconcileService *service.ReconcileService) *WorkspaceHandler {
	return &WorkspaceHandler{store: store, reconcileService: reconcileService}
}

// Create creates a new workspace.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if req.Spec != nil {
		if errs := validation.ValidateSpec(req.Spec); errs.HasErrors() {
			respondValidationErrors(w, errs)
			return
		}
	}

	now := time.Now()
	ws := &domain.Workspace{
		ID:        generateID(),
		Name:      req.Name,
		Spec:      req.Spec,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.CreateWorkspace(r.Context(), ws); err != nil {
		handleError(w, err)
		return
	}

	if ws.Spec != nil {
		h.reconcileService.TriggerReconcile(ws.ID)
	}

	respondJSON(w, http.StatusCreated, ws)
}

// List lists all workspaces.
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.store.ListWorkspaces(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, workspaces)
}

// Get gets a workspace by ID.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workspace_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	ws, err := h.store.GetWorkspace(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ws)
}

// Update updates a workspace's name and/or spec.
func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workspace_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	var req domain.UpdateWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws, err := h.store.GetWorkspace(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	specChanged := false
	if req.Name != nil {
		ws.Name = *req.Name
	}
	if req.Spec != nil {
		if errs := validation.ValidateSpec(req.Spec); errs.HasErrors() {
			respondValidationErrors(w, errs)
			return
		}
		ws.Spec = req.Spec
		specChanged = true
	}
	ws.UpdatedAt = time.Now()

	if err := h.store.UpdateWorkspace(r.Context(), ws); err != nil {
		handleError(w, err)
		return
	}

	if specChanged {
		h.reconcileService.TriggerReconcile(ws.ID)
	}

	respondJSON(w, http.StatusOK, ws)
}

// ReplaceSpec replaces the workspace's ACL spec wholesale.
func (h *WorkspaceHandler) ReplaceSpec(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workspace_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	ws, err := h.store.GetWorkspace(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	var spec domain.ACLSpec
	if err := decodeJSON(r, &spec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if errs := validation.ValidateSpec(&spec); errs.HasErrors() {
		respondValidationErrors(w, errs)
		return
	}

	ws.Spec = &spec
	ws.UpdatedAt = time.Now()

	if err := h.store.UpdateWorkspace(r.Context(), ws); err != nil {
		handleError(w, err)
		return
	}

	h.reconcileService.TriggerReconcile(ws.ID)

	respondJSON(w, http.StatusOK, ws)
}

// GetSpec returns the workspace's ACL spec.
func (h *WorkspaceHandler) GetSpec(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workspace_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	ws, err := h.store.GetWorkspace(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	if ws.Spec == nil {
		respondJSON(w, http.StatusOK, &domain.ACLSpec{})
		return
	}
	respondJSON(w, http.StatusOK, ws.Spec)
}

// Delete deletes a workspace and its version history.
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workspace_id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	if err := h.store.DeleteWorkspace(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
