package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stackwise/nacl-manager/internal/domain"
	"github.com/stackwise/nacl-manager/internal/lifecycle"
	"github.com/stackwise/nacl-manager/internal/provider"
	"github.com/stackwise/nacl-manager/internal/reconciler"
	"github.com/stackwise/nacl-manager/internal/storage"
	"github.com/stackwise/nacl-manager/internal/validation"
)

// ReconcileService plans and applies workspace specs against the provider.
type ReconcileService struct {
	store         storage.Storage
	reconciler    *reconciler.Reconciler
	debounce      time.Duration
	autoReconcile bool

	mu     sync.Mutex
	timers map[string]*time.Timer // workspaceID -> pending debounced reconcile
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(store storage.Storage, client provider.Client, debounce time.Duration, autoReconcile bool) *ReconcileService {
	var rec *reconciler.Reconciler
	if client != nil {
		rec = reconciler.New(client)
	}
	return &ReconcileService{
		store:         store,
		reconciler:    rec,
		debounce:      debounce,
		autoReconcile: autoReconcile,
		timers:        make(map[string]*time.Timer),
	}
}

// TriggerReconcile schedules a debounced reconcile for a workspace.
// Multiple triggers within the debounce period result in a single pass.
func (s *ReconcileService) TriggerReconcile(workspaceID string) {
	if !s.autoReconcile {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[workspaceID]; ok {
		timer.Stop()
	}
	s.timers[workspaceID] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.timers, workspaceID)
		s.mu.Unlock()

		ctx := context.Background()
		if _, err := s.doReconcile(ctx, workspaceID); err != nil {
			log.Printf("Auto-reconcile of workspace %s failed: %v", workspaceID, err)
		}
	})
}

// Plan builds the desired-state plan for a workspace without touching the
// provider. Used for the plan-preview endpoint.
func (s *ReconcileService) Plan(ctx context.Context, workspaceID string) (*domain.Plan, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	spec := ws.Spec
	if spec == nil {
		spec = &domain.ACLSpec{}
	}
	if errs := validation.ValidateSpec(spec); errs.HasErrors() {
		return nil, fmt.Errorf("%s: %w", errs.Error(), domain.ErrInvalidConfiguration)
	}
	return lifecycle.BuildPlan(spec)
}

// ForceReconcile runs an immediate reconcile for a workspace, cancelling any
// pending debounced pass.
func (s *ReconcileService) ForceReconcile(ctx context.Context, workspaceID string) (*domain.ReconcileResponse, error) {
	s.mu.Lock()
	if timer, ok := s.timers[workspaceID]; ok {
		timer.Stop()
		delete(s.timers, workspaceID)
	}
	s.mu.Unlock()

	return s.doReconcile(ctx, workspaceID)
}

// doReconcile performs the actual reconcile pass: validate, plan, record a
// pending version, apply, record the outcome.
func (s *ReconcileService) doReconcile(ctx context.Context, workspaceID string) (*domain.ReconcileResponse, error) {
	plan, err := s.Plan(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, err
	}

	nextVersion := 1
	latest, err := s.store.GetLatestReconcileVersion(ctx, workspaceID)
	if err == nil {
		nextVersion = latest.VersionNumber + 1
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	version := &domain.ReconcileVersion{
		ID:            uuid.New().String(),
		WorkspaceID:   workspaceID,
		VersionNumber: nextVersion,
		RenderedPlan:  string(planJSON),
		Status:        domain.StatusPending,
		Fingerprint:   plan.Fingerprint,
		CreatedAt:     time.Now(),
	}
	if err := s.store.CreateReconcileVersion(ctx, version); err != nil {
		return nil, err
	}

	prior, err := s.priorState(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if s.reconciler == nil {
		return nil, fmt.Errorf("no provider configured: %w", domain.ErrReconcileFailed)
	}

	now := time.Now()
	result, err := s.reconciler.Apply(ctx, plan, prior)
	if err != nil {
		version.Status = domain.StatusFailed
		version.Error = err.Error()
		version.AppliedAt = &now
		_ = s.store.UpdateReconcileVersion(ctx, version)

		return &domain.ReconcileResponse{
			VersionID:     version.ID,
			VersionNumber: version.VersionNumber,
			Status:        domain.StatusFailed,
			Error:         err.Error(),
		}, nil
	}

	version.Status = domain.StatusSuccess
	version.NetworkACLID = result.NetworkACLID
	version.Fingerprint = result.Fingerprint
	version.AppliedAt = &now
	if result.State != nil {
		stateJSON, err := json.Marshal(result.State)
		if err == nil {
			version.State = string(stateJSON)
		}
	}
	if err := s.store.UpdateReconcileVersion(ctx, version); err != nil {
		log.Printf("Warning: failed to update version record: %v", err)
	}

	return &domain.ReconcileResponse{
		VersionID:     version.ID,
		VersionNumber: version.VersionNumber,
		Status:        domain.StatusSuccess,
		NetworkACLID:  result.NetworkACLID,
		RuleIDs:       result.RuleIDs,
	}, nil
}

// priorState loads the reconcile state snapshot of the last successful pass.
func (s *ReconcileService) priorState(ctx context.Context, workspaceID string) (*domain.ReconcileState, error) {
	latest, err := s.store.GetLatestSuccessfulVersion(ctx, workspaceID)
	if err == domain.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if latest.State == "" {
		return nil, nil
	}
	var state domain.ReconcileState
	if err := json.Unmarshal([]byte(latest.State), &state); err != nil {
		return nil, fmt.Errorf("parsing prior reconcile state: %w", err)
	}
	return &state, nil
}
