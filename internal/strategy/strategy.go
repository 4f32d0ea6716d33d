// Package strategy implements workspace- and folder-level mutations behind
// one capability interface with two variants. The online variant writes to
// shared state and enqueues operations for background delivery; the offline
// variant writes directly to the native filesystem backend. The variant is
// selected per workspace by its connectivity mode.
package strategy

import (
	"context"

	"github.com/opsbookhq/opsbook/internal/models"
)

// Strategy is the mutation surface exposed to callers. Every method returns
// a typed *OpError on failure. Structurally invalid requests (renaming a
// folder that does not exist, a move that would create a cycle) are rejected
// as silent no-ops: no state change, no operation, nil error.
type Strategy interface {
	// CreateWorkspace makes a new workspace named name. folder is the
	// filesystem location for offline workspaces and ignored online.
	CreateWorkspace(ctx context.Context, name, folder string) (*models.Workspace, error)

	// RenameWorkspace updates the workspace display name.
	RenameWorkspace(ctx context.Context, ws *models.Workspace, name string) error

	// CreateFolder creates a folder under parentID and returns its id.
	CreateFolder(ctx context.Context, ws *models.Workspace, parentID, name string) (string, error)

	// RenameFolder renames an existing folder.
	RenameFolder(ctx context.Context, ws *models.Workspace, folderID, name string) error

	// DeleteFolder removes a folder and everything under it.
	DeleteFolder(ctx context.Context, ws *models.Workspace, folderID string) error

	// MoveItems reparents items under newParentID at the given position.
	MoveItems(ctx context.Context, ws *models.Workspace, ids []string, newParentID string, index int) error

	// CreateRunbook makes a new runbook under folderID.
	CreateRunbook(ctx context.Context, ws *models.Workspace, name, folderID string) (*models.Runbook, error)

	// DeleteRunbook removes a runbook.
	DeleteRunbook(ctx context.Context, ws *models.Workspace, runbookID string) error
}

// Select returns the variant matching the workspace's connectivity mode.
// Legacy-hybrid workspaces take the online path for structural mutations.
func Select(ws *models.Workspace, online *Online, offline *Offline) Strategy {
	if ws.Online() {
		return online
	}
	return offline
}
