package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opsbookhq/opsbook/internal/backend"
	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/opsbookhq/opsbook/internal/store/runbooks"
	"github.com/opsbookhq/opsbook/internal/store/workspaces"
)

// Offline is the strategy for filesystem-backed workspaces. Mutations go
// straight to the native backend; the filesystem is the source of truth,
// observed by the file watcher, so nothing rides the operation log.
type Offline struct {
	backend    backend.Backend
	workspaces workspaces.Repository
	runbooks   runbooks.Repository
	log        logging.Logger
}

func NewOffline(b backend.Backend, ws workspaces.Repository, rb runbooks.Repository, log logging.Logger) *Offline {
	return &Offline{backend: b, workspaces: ws, runbooks: rb, log: log}
}

func (s *Offline) CreateWorkspace(ctx context.Context, name, folder string) (*models.Workspace, error) {
	now := time.Now().UTC()
	ws := &models.Workspace{
		ID:        uuid.NewString(),
		Name:      name,
		Mode:      models.ModeOffline,
		Folder:    folder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.backend.CreateWorkspace(ctx, folder, ws.ID, name); err != nil {
		return nil, opErr(OpWorkspaceCreate, ws.ID, "cannot create workspace directory", err)
	}
	if err := s.workspaces.CreateOrUpdate(ctx, ws); err != nil {
		return nil, opErr(OpWorkspaceCreate, ws.ID, "cannot store workspace", err)
	}
	return ws, nil
}

func (s *Offline) RenameWorkspace(ctx context.Context, ws *models.Workspace, name string) error {
	if err := s.backend.RenameWorkspace(ctx, ws.Folder, name); err != nil {
		return opErr(OpWorkspaceRename, ws.ID, "cannot rename workspace", err)
	}
	if err := s.workspaces.Rename(ctx, ws.ID, name); err != nil {
		return opErr(OpWorkspaceRename, ws.ID, "cannot store new name", err)
	}
	ws.Name = name
	return nil
}

// CreateFolder creates the directory and returns its workspace-relative path,
// which doubles as the folder id for offline workspaces.
func (s *Offline) CreateFolder(ctx context.Context, ws *models.Workspace, parentID, name string) (string, error) {
	rel, err := s.backend.CreateFolder(ctx, ws.Folder, parentID, name)
	if err != nil {
		return "", opErr(OpFolderCreate, parentID, "cannot create folder", err)
	}
	return rel, nil
}

func (s *Offline) RenameFolder(ctx context.Context, ws *models.Workspace, folderID, name string) error {
	if _, err := s.backend.RenameFolder(ctx, ws.Folder, folderID, name); err != nil {
		return opErr(OpFolderRename, folderID, "cannot rename folder", err)
	}
	return nil
}

func (s *Offline) DeleteFolder(ctx context.Context, ws *models.Workspace, folderID string) error {
	if err := s.backend.DeleteFolder(ctx, ws.Folder, folderID); err != nil {
		return opErr(OpFolderDelete, folderID, "cannot delete folder", err)
	}
	return nil
}

func (s *Offline) MoveItems(ctx context.Context, ws *models.Workspace, ids []string, newParentID string, _ int) error {
	// The filesystem has no sibling ordering; the index is ignored.
	if err := s.backend.MoveItems(ctx, ws.Folder, ids, newParentID); err != nil {
		return opErr(OpItemsMove, newParentID, "cannot move items", err)
	}
	return nil
}

func (s *Offline) CreateRunbook(ctx context.Context, ws *models.Workspace, name, folderID string) (*models.Runbook, error) {
	now := time.Now().UTC()
	rb := &models.Runbook{
		ID:          uuid.NewString(),
		WorkspaceID: ws.ID,
		Name:        name,
		Content:     []byte(`{"blocks":[]}`),
		Source:      models.SourceLocal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.backend.CreateRunbook(ctx, ws.Folder, rb, folderID); err != nil {
		return nil, opErr(OpRunbookCreate, rb.ID, "cannot write runbook", err)
	}
	if err := s.runbooks.CreateOrUpdate(ctx, rb); err != nil {
		return nil, opErr(OpRunbookCreate, rb.ID, "cannot store runbook", err)
	}
	return rb, nil
}

func (s *Offline) DeleteRunbook(ctx context.Context, ws *models.Workspace, runbookID string) error {
	if err := s.backend.DeleteRunbook(ctx, ws.Folder, runbookID); err != nil {
		return opErr(OpRunbookDelete, runbookID, "cannot delete runbook", err)
	}
	if err := s.runbooks.Delete(ctx, runbookID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return opErr(OpRunbookDelete, runbookID, "cannot drop runbook row", err)
	}
	return nil
}
