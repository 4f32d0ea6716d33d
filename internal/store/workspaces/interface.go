package workspaces

import (
	"context"

	"github.com/opsbookhq/opsbook/internal/models"
)

// Repository describes persistence for workspace rows in the local store.
// Workspaces are never hard-deleted; mode changes and renames are updates.
type Repository interface {
	// CreateOrUpdate inserts a workspace or updates an existing one by id.
	CreateOrUpdate(ctx context.Context, w *models.Workspace) error

	// GetByID returns a workspace, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Workspace, error)

	// List returns all workspaces ordered by name.
	List(ctx context.Context) ([]models.Workspace, error)

	// Rename updates the display name of an existing workspace.
	Rename(ctx context.Context, id, name string) error
}
