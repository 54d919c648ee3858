// Package sql implements the storage interface over sqlite or postgres.
package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/stackwise/nacl-manager/internal/domain"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders for the active driver.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// CreateAPIKey stores a new API key.
func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

// GetAPIKeyByHash looks up an API key by its hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.GetContext(ctx, &key, s.rebind(`
		SELECT id, name, key_hash, key_prefix, created_at, last_used_at
		FROM api_keys WHERE key_hash = ?`), keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// ListAPIKeys lists all API keys ordered by creation time.
func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	keys := []*domain.APIKey{}
	err := s.db.SelectContext(ctx, &keys, `
		SELECT id, name, key_hash, key_prefix, created_at, last_used_at
		FROM api_keys ORDER BY created_at`)
	return keys, err
}

// DeleteAPIKey deletes an API key by id.
func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM api_keys WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateAPIKeyLastUsed stamps the key's last-used time.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`),
		time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountAPIKeys returns the number of stored API keys.
func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

// workspaceRow is the database shape of a workspace; the spec is a JSON text
// column.
type workspaceRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Spec      string    `db:"spec"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *workspaceRow) toDomain() (*domain.Workspace, error) {
	ws := &domain.Workspace{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Spec != "" {
		var spec domain.ACLSpec
		if err := json.Unmarshal([]byte(r.Spec), &spec); err != nil {
			return nil, fmt.Errorf("parsing workspace %s spec: %w", r.ID, err)
		}
		ws.Spec = &spec
	}
	return ws, nil
}

func specJSON(ws *domain.Workspace) (string, error) {
	if ws.Spec == nil {
		return "{}", nil
	}
	data, err := json.Marshal(ws.Spec)
	if err != nil {
		return "", fmt.Errorf("serializing workspace spec: %w", err)
	}
	return string(data), nil
}

// CreateWorkspace stores a new workspace.
func (s *Store) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	spec, err := specJSON(ws)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO workspaces (id, name, spec, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`),
		ws.ID, ws.Name, spec, ws.CreatedAt, ws.UpdatedAt)
	return wrapUniqueError(err)
}

// GetWorkspace returns a workspace by id.
func (s *Store) GetWorkspace(ctx context.Context, id string) (*domain.Workspace, error) {
	return s.getWorkspace(ctx, `id = ?`, id)
}

// GetWorkspaceByName returns a workspace by name.
func (s *Store) GetWorkspaceByName(ctx context.Context, name string) (*domain.Workspace, error) {
	return s.getWorkspace(ctx, `name = ?`, name)
}

func (s *Store) getWorkspace(ctx context.Context, where string, arg any) (*domain.Workspace, error) {
	var row workspaceRow
	err := s.db.GetContext(ctx, &row, s.rebind(`
		SELECT id, name, spec, created_at, updated_at FROM workspaces WHERE `+where), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// ListWorkspaces lists all workspaces ordered by name.
func (s *Store) ListWorkspaces(ctx context.Context) ([]*domain.Workspace, error) {
	rows := []workspaceRow{}
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, spec, created_at, updated_at FROM workspaces ORDER BY name`); err != nil {
		return nil, err
	}
	out := make([]*domain.Workspace, 0, len(rows))
	for i := range rows {
		ws, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, nil
}

// UpdateWorkspace replaces a stored workspace.
func (s *Store) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	spec, err := specJSON(ws)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE workspaces SET name = ?, spec = ?, updated_at = ? WHERE id = ?`),
		ws.Name, spec, ws.UpdatedAt, ws.ID)
	if err != nil {
		return wrapUniqueError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteWorkspace deletes a workspace; versions cascade.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM workspaces WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateReconcileVersion stores a new version record.
func (s *Store) CreateReconcileVersion(ctx context.Context, v *domain.ReconcileVersion) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO reconcile_versions
		(id, workspace_id, version_number, rendered_plan, status, error, network_acl_id, fingerprint, state, created_at, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		v.ID, v.WorkspaceID, v.VersionNumber, v.RenderedPlan, v.Status, v.Error,
		v.NetworkACLID, v.Fingerprint, v.State, v.CreatedAt, v.AppliedAt)
	return wrapUniqueError(err)
}

// GetReconcileVersion returns a version record by id.
func (s *Store) GetReconcileVersion(ctx context.Context, id string) (*domain.ReconcileVersion, error) {
	var v domain.ReconcileVersion
	err := s.db.GetContext(ctx, &v, s.rebind(`
		SELECT id, workspace_id, version_number, rendered_plan, status, error, network_acl_id, fingerprint, state, created_at, applied_at
		FROM reconcile_versions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetLatestReconcileVersion returns the highest-numbered version for a
// workspace.
func (s *Store) GetLatestReconcileVersion(ctx context.Context, workspaceID string) (*domain.ReconcileVersion, error) {
	return s.latestVersion(ctx, workspaceID, false)
}

// GetLatestSuccessfulVersion returns the highest-numbered successful version
// for a workspace.
func (s *Store) GetLatestSuccessfulVersion(ctx context.Context, workspaceID string) (*domain.ReconcileVersion, error) {
	return s.latestVersion(ctx, workspaceID, true)
}

func (s *Store) latestVersion(ctx context.Context, workspaceID string, successOnly bool) (*domain.ReconcileVersion, error) {
	query := `
		SELECT id, workspace_id, version_number, rendered_plan, status, error, network_acl_id, fingerprint, state, created_at, applied_at
		FROM reconcile_versions WHERE workspace_id = ?`
	args := []any{workspaceID}
	if successOnly {
		query += ` AND status = ?`
		args = append(args, domain.StatusSuccess)
	}
	query += ` ORDER BY version_number DESC LIMIT 1`

	var v domain.ReconcileVersion
	err := s.db.GetContext(ctx, &v, s.rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListReconcileVersions lists a workspace's versions, newest first.
func (s *Store) ListReconcileVersions(ctx context.Context, workspaceID string) ([]*domain.ReconcileVersion, error) {
	versions := []*domain.ReconcileVersion{}
	err := s.db.SelectContext(ctx, &versions, s.rebind(`
		SELECT id, workspace_id, version_number, rendered_plan, status, error, network_acl_id, fingerprint, state, created_at, applied_at
		FROM reconcile_versions WHERE workspace_id = ? ORDER BY version_number DESC`), workspaceID)
	return versions, err
}

// UpdateReconcileVersion replaces a stored version record.
func (s *Store) UpdateReconcileVersion(ctx context.Context, v *domain.ReconcileVersion) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE reconcile_versions
		SET status = ?, error = ?, network_acl_id = ?, fingerprint = ?, state = ?, applied_at = ?
		WHERE id = ?`),
		v.Status, v.Error, v.NetworkACLID, v.Fingerprint, v.State, v.AppliedAt, v.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
