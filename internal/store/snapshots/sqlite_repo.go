// Package snapshots persists published runbook snapshots in the local store.
package snapshots

import (
	"context"
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

func (r *SQLiteRepository) Create(ctx context.Context, s *models.Snapshot) error {
	query := `INSERT INTO snapshots (id, runbook_id, tag, content, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.RunbookID, s.Tag, s.Content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListByRunbook(ctx context.Context, runbookID string) ([]models.Snapshot, error) {
	query := `SELECT id, runbook_id, tag, content, created_at FROM snapshots
			WHERE runbook_id = ? ORDER BY created_at DESC, rowid DESC`
	rows, err := r.db.QueryContext(ctx, query, runbookID)
	if err != nil {
		return nil, fmt.Errorf("failed to select snapshots: %w", err)
	}
	defer rows.Close()

	var result []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(&s.ID, &s.RunbookID, &s.Tag, &s.Content, &s.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, runbookID, tag string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE runbook_id = ? AND tag = ?`, runbookID, tag)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
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
