// Package runbooks persists runbook rows in the local sqlite store.
package runbooks

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

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, rb *models.Runbook) error {
	remote, err := encodeRemoteInfo(rb.Remote)
	if err != nil {
		return err
	}
	content := rb.Content
	if content == nil {
		// content is NOT NULL; a remote record with no body stores as empty.
		content = []byte{}
	}
	now := time.Now().UTC()
	query := `INSERT INTO runbooks (id, workspace_id, name, content, source, remote_info, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET workspace_id = excluded.workspace_id,
				name = excluded.name,
				content = excluded.content,
				source = excluded.source,
				remote_info = excluded.remote_info,
				updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		rb.ID, rb.WorkspaceID, rb.Name, content, string(rb.Source), remote, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert runbook: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Runbook, error) {
	query := `SELECT id, workspace_id, name, content, source, remote_info, created_at, updated_at
			FROM runbooks WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	rb, err := scanRunbook(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get runbook: %w", err)
	}
	return rb, nil
}

func (r *SQLiteRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Runbook, error) {
	query := `SELECT id, workspace_id, name, content, source, remote_info, created_at, updated_at
			FROM runbooks WHERE workspace_id = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to select runbooks: %w", err)
	}
	defer rows.Close()

	var result []models.Runbook
	for rows.Next() {
		rb, err := scanRunbook(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *rb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateRemoteInfo(ctx context.Context, id string, info *models.RemoteInfo) error {
	remote, err := encodeRemoteInfo(info)
	if err != nil {
		return err
	}
	query := `UPDATE runbooks SET remote_info = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, remote, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update remote info: %w", err)
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

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runbooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete runbook: %w", err)
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

func encodeRemoteInfo(info *models.RemoteInfo) (sql.NullString, error) {
	if info == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(info)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode remote info: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func scanRunbook(scan func(dest ...any) error) (*models.Runbook, error) {
	rb := &models.Runbook{}
	var source string
	var remote sql.NullString
	if err := scan(&rb.ID, &rb.WorkspaceID, &rb.Name, &rb.Content, &source, &remote, &rb.CreatedAt, &rb.UpdatedAt); err != nil {
		return nil, err
	}
	rb.Source = models.RunbookSource(source)
	if remote.Valid {
		info := &models.RemoteInfo{}
		if err := json.Unmarshal([]byte(remote.String), info); err != nil {
			return nil, fmt.Errorf("failed to decode remote info: %w", err)
		}
		rb.Remote = info
	}
	return rb, nil
}
