package runbooks

import (
	"context"

	"github.com/opsbookhq/opsbook/internal/models"
)

// Repository describes persistence for runbook rows in the local store.
type Repository interface {
	// CreateOrUpdate inserts a runbook or updates an existing one by id.
	CreateOrUpdate(ctx context.Context, rb *models.Runbook) error

	// GetByID returns a runbook, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Runbook, error)

	// ListByWorkspace returns all runbooks owned by a workspace.
	ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Runbook, error)

	// UpdateRemoteInfo replaces the cached remote descriptor. Pass nil to
	// clear it (no confirmed remote record).
	UpdateRemoteInfo(ctx context.Context, id string, info *models.RemoteInfo) error

	// Delete removes the row. The caller is responsible for having
	// enqueued the tombstone operation first.
	Delete(ctx context.Context, id string) error
}
