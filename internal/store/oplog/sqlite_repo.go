// Package oplog persists the operation log (outbox) in the local store.
package oplog

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

func (r *SQLiteRepository) Append(ctx context.Context, op *models.Operation) error {
	payload, err := models.EncodePayload(op.Payload)
	if err != nil {
		return err
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO operations (id, workspace_id, kind, payload, change_ref, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		op.ID, op.WorkspaceID, string(op.Payload.Kind()), string(payload), int64(op.ChangeRef), op.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append operation: %w", err)
	}
	return nil
}

// ListPending orders by rowid, which is insertion order: global FIFO, and
// therefore FIFO per workspace.
func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.Operation, error) {
	query := `SELECT id, workspace_id, kind, payload, change_ref, created_at
			FROM operations ORDER BY rowid`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	var result []models.Operation
	for rows.Next() {
		var (
			op        models.Operation
			kind      string
			payload   string
			changeRef int64
		)
		if err := rows.Scan(&op.ID, &op.WorkspaceID, &kind, &payload, &changeRef, &op.CreatedAt); err != nil {
			return nil, err
		}
		op.Payload, err = models.DecodePayload(models.OperationKind(kind), []byte(payload))
		if err != nil {
			return nil, err
		}
		op.ChangeRef = models.ChangeRef(changeRef)
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove operation: %w", err)
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
