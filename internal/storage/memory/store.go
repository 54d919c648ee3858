// Package memory provides an in-memory implementation of the storage
// interface for testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stackwise/nacl-manager/internal/domain"
)

// Store is an in-memory implementation of the storage interface.
type Store struct {
	mu sync.RWMutex

	apiKeys    map[string]*domain.APIKey           // key: id
	workspaces map[string]*domain.Workspace        // key: id
	versions   map[string]*domain.ReconcileVersion // key: id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		apiKeys:    make(map[string]*domain.APIKey),
		workspaces: make(map[string]*domain.Workspace),
		versions:   make(map[string]*domain.ReconcileVersion),
	}
}

func (s *Store) Close() error { return nil }

// CreateAPIKey stores a new API key.
func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apiKeys[key.ID]; ok {
		return domain.ErrAlreadyExists
	}
	copied := *key
	s.apiKeys[key.ID] = &copied
	return nil
}

// GetAPIKeyByHash looks up an API key by its hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.apiKeys {
		if key.KeyHash == keyHash {
			copied := *key
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListAPIKeys lists all API keys ordered by creation time.
func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*domain.APIKey, 0, len(s.apiKeys))
	for _, key := range s.apiKeys {
		copied := *key
		keys = append(keys, &copied)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

// DeleteAPIKey deletes an API key by id.
func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apiKeys[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.apiKeys, id)
	return nil
}

// UpdateAPIKeyLastUsed stamps the key's last-used time.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

// CountAPIKeys returns the number of stored API keys.
func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.apiKeys), nil
}

// CreateWorkspace stores a new workspace.
func (s *Store) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[ws.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.workspaces {
		if existing.Name == ws.Name {
			return domain.ErrAlreadyExists
		}
	}
	copied := *ws
	s.workspaces[ws.ID] = &copied
	return nil
}

// GetWorkspace returns a workspace by id.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *ws
	return &copied, nil
}

// GetWorkspaceByName returns a workspace by name.
func (s *Store) GetWorkspaceByName(ctx context.Context, name string) (*domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ws := range s.workspaces {
		if ws.Name == name {
			copied := *ws
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListWorkspaces lists all workspaces ordered by name.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*domain.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		copied := *ws
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateWorkspace replaces a stored workspace.
func (s *Store) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[ws.ID]; !ok {
		return domain.ErrNotFound
	}
	for _, existing := range s.workspaces {
		if existing.Name == ws.Name && existing.ID != ws.ID {
			return domain.ErrAlreadyExists
		}
	}
	copied := *ws
	s.workspaces[ws.ID] = &copied
	return nil
}

// DeleteWorkspace deletes a workspace and its versions.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.workspaces, id)
	for vid, v := range s.versions {
		if v.WorkspaceID == id {
			delete(s.versions, vid)
		}
	}
	return nil
}

// CreateReconcileVersion stores a new version record.
func (s *Store) CreateReconcileVersion(ctx context.Context, v *domain.ReconcileVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[v.ID]; ok {
		return domain.ErrAlreadyExists
	}
	copied := *v
	s.versions[v.ID] = &copied
	return nil
}

// GetReconcileVersion returns a version record by id.
func (s *Store) GetReconcileVersion(ctx context.Context, id string) (*domain.ReconcileVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

// GetLatestReconcileVersion returns the highest-numbered version for a
// workspace.
func (s *Store) GetLatestReconcileVersion(ctx context.Context, workspaceID string) (*domain.ReconcileVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest(workspaceID, func(*domain.ReconcileVersion) bool { return true })
}

// GetLatestSuccessfulVersion returns the highest-numbered successful version
// for a workspace.
func (s *Store) GetLatestSuccessfulVersion(ctx context.Context, workspaceID string) (*domain.ReconcileVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest(workspaceID, func(v *domain.ReconcileVersion) bool { return v.Status == domain.StatusSuccess })
}

// latest picks the highest-numbered matching version; callers hold the lock.
func (s *Store) latest(workspaceID string, match func(*domain.ReconcileVersion) bool) (*domain.ReconcileVersion, error) {
	var best *domain.ReconcileVersion
	for _, v := range s.versions {
		if v.WorkspaceID != workspaceID || !match(v) {
			continue
		}
		if best == nil || v.VersionNumber > best.VersionNumber {
			best = v
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	copied := *best
	return &copied, nil
}

// ListReconcileVersions lists a workspace's versions, newest first.
func (s *Store) ListReconcileVersions(ctx context.Context, workspaceID string) ([]*domain.ReconcileVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ReconcileVersion, 0)
	for _, v := range s.versions {
		if v.WorkspaceID == workspaceID {
			copied := *v
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

// UpdateReconcileVersion replaces a stored version record.
func (s *Store) UpdateReconcileVersion(ctx context.Context, v *domain.ReconcileVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[v.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *v
	s.versions[v.ID] = &copied
	return nil
}
