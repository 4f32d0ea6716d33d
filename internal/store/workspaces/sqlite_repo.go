// Package workspaces persists workspace rows in the local sqlite store.
package workspaces

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/dbx"
	"github.com/opsbookhq/opsbook/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, w *models.Workspace) error {
	perms, err := json.Marshal(w.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}
	now := time.Now().UTC()
	query := `INSERT INTO workspaces (id, name, mode, folder, permissions, org_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name,
				mode = excluded.mode,
				folder = excluded.folder,
				permissions = excluded.permissions,
				org_id = excluded.org_id,
				updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		w.ID, w.Name, string(w.Mode), w.Folder, string(perms), w.OrgID, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert workspace: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	query := `SELECT id, name, mode, folder, permissions, org_id, created_at, updated_at
			FROM workspaces WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	w, err := scanWorkspace(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return w, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Workspace, error) {
	query := `SELECT id, name, mode, folder, permissions, org_id, created_at, updated_at
			FROM workspaces ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select workspaces: %w", err)
	}
	defer rows.Close()

	var result []models.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Rename(ctx context.Context, id, name string) error {
	query := `UPDATE workspaces SET name = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to rename workspace: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func scanWorkspace(scan func(dest ...any) error) (*models.Workspace, error) {
	w := &models.Workspace{}
	var mode, perms string
	if err := scan(&w.ID, &w.Name, &mode, &w.Folder, &perms, &w.OrgID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Mode = models.WorkspaceMode(mode)
	if err := json.Unmarshal([]byte(perms), &w.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return w, nil
}
