package storage

import (
	"context"

	"github.com/stackwise/nacl-manager/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API Keys
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Workspaces
	CreateWorkspace(ctx context.Context, ws *domain.Workspace) error
	GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error)
	GetWorkspaceByName(ctx context.Context, name string) (*domain.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]*domain.Workspace, error)
	UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error
	DeleteWorkspace(ctx context.Context, id string) error

	// Reconcile versions
	CreateReconcileVersion(ctx context.Context, v *domain.ReconcileVersion) error
	GetReconcileVersion(ctx context.Context, id string) (*domain.ReconcileVersion, error)
	GetLatestReconcileVersion(ctx context.Context, workspaceID string) (*domain.ReconcileVersion, error)
	GetLatestSuccessfulVersion(ctx context.Context, workspaceID string) (*domain.ReconcileVersion, error)
	ListReconcileVersions(ctx context.Context, workspaceID string) ([]*domain.ReconcileVersion, error)
	UpdateReconcileVersion(ctx context.Context, v *domain.ReconcileVersion) error
}
