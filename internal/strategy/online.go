package strategy

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opsbookhq/opsbook/internal/api"
	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/dbx"
	"github.com/opsbookhq/opsbook/internal/foldertree"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/opsbookhq/opsbook/internal/sharedstate"
	"github.com/opsbookhq/opsbook/internal/store/oplog"
	"github.com/opsbookhq/opsbook/internal/store/runbooks"
	"github.com/opsbookhq/opsbook/internal/store/workspaces"
)

// AdapterFactory yields the shared-state adapter for one workspace's folder
// document.
type AdapterFactory func(workspaceID string) sharedstate.Adapter

// FolderKey is the shared-state key of a workspace's folder document.
func FolderKey(workspaceID string) string {
	return "workspace-folder:" + workspaceID
}

// Online is the strategy for server-replicated workspaces. Structural
// mutations are applied optimistically to the workspace's shared folder
// document; when the mutator reports a real change, a matching operation
// carrying the returned change ref is appended for background delivery.
type Online struct {
	db         *sql.DB
	shared     *sharedstate.Registry
	adapters   AdapterFactory
	api        api.Client
	workspaces workspaces.Repository
	runbooks   runbooks.Repository
	oplog      oplog.Repository
	log        logging.Logger
}

func NewOnline(db *sql.DB, shared *sharedstate.Registry, adapters AdapterFactory, client api.Client, log logging.Logger) *Online {
	return &Online{
		db:         db,
		shared:     shared,
		adapters:   adapters,
		api:        client,
		workspaces: workspaces.NewSQLiteRepository(db),
		runbooks:   runbooks.NewSQLiteRepository(db),
		oplog:      oplog.NewSQLiteRepository(db),
		log:        log,
	}
}

func (s *Online) CreateWorkspace(ctx context.Context, name, _ string) (*models.Workspace, error) {
	now := time.Now().UTC()
	ws := &models.Workspace{
		ID:        uuid.NewString(),
		Name:      name,
		Mode:      models.ModeOnline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.workspaces.CreateOrUpdate(ctx, ws); err != nil {
		return nil, opErr(OpWorkspaceCreate, ws.ID, "cannot store workspace", err)
	}
	payload := models.WorkspaceCreated{WorkspaceID: ws.ID, Name: name, OrgID: ws.OrgID}
	if err := s.append(ctx, ws.ID, payload, 0); err != nil {
		return nil, opErr(OpWorkspaceCreate, ws.ID, "cannot enqueue operation", err)
	}
	return ws, nil
}

// RenameWorkspace updates the local row synchronously and enqueues exactly
// one WorkspaceRenamed operation. The workspace name is not part of the
// shared folder document, so no change ref accompanies it.
func (s *Online) RenameWorkspace(ctx context.Context, ws *models.Workspace, name string) error {
	if err := s.workspaces.Rename(ctx, ws.ID, name); err != nil {
		return opErr(OpWorkspaceRename, ws.ID, "cannot rename workspace", err)
	}
	payload := models.WorkspaceRenamed{WorkspaceID: ws.ID, Name: name}
	if err := s.append(ctx, ws.ID, payload, 0); err != nil {
		return opErr(OpWorkspaceRename, ws.ID, "cannot enqueue operation", err)
	}
	ws.Name = name
	return nil
}

func (s *Online) CreateFolder(ctx context.Context, ws *models.Workspace, parentID, name string) (string, error) {
	folderID := uuid.NewString()
	ref, err := s.mutateFolders(ctx, ws, func(t *foldertree.Tree) bool {
		return t.CreateFolder(folderID, parentID, name)
	})
	if err != nil {
		return "", opErr(OpFolderCreate, folderID, "cannot update folder state", err)
	}
	if ref == 0 {
		return "", opErr(OpFolderCreate, parentID, "parent folder does not exist", nil)
	}
	payload := models.FolderCreated{WorkspaceID: ws.ID, FolderID: folderID, ParentID: parentID, Name: name}
	if err := s.append(ctx, ws.ID, payload, ref); err != nil {
		return "", opErr(OpFolderCreate, folderID, "cannot enqueue operation", err)
	}
	return folderID, nil
}

func (s *Online) RenameFolder(ctx context.Context, ws *models.Workspace, folderID, name string) error {
	ref, err := s.mutateFolders(ctx, ws, func(t *foldertree.Tree) bool {
		return t.RenameFolder(folderID, name)
	})
	if err != nil {
		return opErr(OpFolderRename, folderID, "cannot update folder state", err)
	}
	if ref == 0 {
		return nil
	}
	payload := models.FolderRenamed{WorkspaceID: ws.ID, FolderID: folderID, Name: name}
	if err := s.append(ctx, ws.ID, payload, ref); err != nil {
		return opErr(OpFolderRename, folderID, "cannot enqueue operation", err)
	}
	return nil
}

func (s *Online) DeleteFolder(ctx context.Context, ws *models.Workspace, folderID string) error {
	ref, err := s.mutateFolders(ctx, ws, func(t *foldertree.Tree) bool {
		return t.DeleteFolder(folderID)
	})
	if err != nil {
		return opErr(OpFolderDelete, folderID, "cannot update folder state", err)
	}
	if ref == 0 {
		return nil
	}
	payload := models.FolderDeleted{WorkspaceID: ws.ID, FolderID: folderID}
	if err := s.append(ctx, ws.ID, payload, ref); err != nil {
		return opErr(OpFolderDelete, folderID, "cannot enqueue operation", err)
	}
	return nil
}

func (s *Online) MoveItems(ctx context.Context, ws *models.Workspace, ids []string, newParentID string, index int) error {
	ref, err := s.mutateFolders(ctx, ws, func(t *foldertree.Tree) bool {
		return t.MoveItems(ids, newParentID, index)
	})
	if err != nil {
		return opErr(OpItemsMove, newParentID, "cannot update folder state", err)
	}
	if ref == 0 {
		// Cyclic or otherwise invalid moves are rejected as a no-op.
		return nil
	}
	payload := models.ItemsMoved{WorkspaceID: ws.ID, ItemIDs: ids, NewParentID: newParentID, Index: index}
	if err := s.append(ctx, ws.ID, payload, ref); err != nil {
		return opErr(OpItemsMove, newParentID, "cannot enqueue operation", err)
	}
	return nil
}

// CreateRunbook registers the runbook locally, then calls the server
// synchronously for a confirmed record before touching shared state. The
// server-side shared-state observer must not race a newly created observer
// for the same id, so the remote call cannot ride the operation log. On API
// failure the local row is deleted and nothing is enqueued.
func (s *Online) CreateRunbook(ctx context.Context, ws *models.Workspace, name, folderID string) (*models.Runbook, error) {
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
	if err := s.runbooks.CreateOrUpdate(ctx, rb); err != nil {
		return nil, opErr(OpRunbookCreate, rb.ID, "cannot store runbook", err)
	}

	remote, err := s.api.CreateRunbook(ctx, api.CreateRunbookRequest{
		ID:          rb.ID,
		WorkspaceID: ws.ID,
		Name:        name,
		Content:     rb.Content,
	})
	if err != nil {
		if delErr := s.runbooks.Delete(ctx, rb.ID); delErr != nil {
			s.log.Error(ctx, "cannot undo runbook row after failed remote create",
				"runbook_id", rb.ID, "error", delErr)
		}
		return nil, opErr(OpRunbookCreate, rb.ID, "remote runbook creation failed", err)
	}
	rb.Remote = remote.RemoteInfo()
	if err := s.runbooks.UpdateRemoteInfo(ctx, rb.ID, rb.Remote); err != nil {
		return nil, opErr(OpRunbookCreate, rb.ID, "cannot cache remote descriptor", err)
	}

	ref, err := s.mutateFolders(ctx, ws, func(t *foldertree.Tree) bool {
		return t.CreateRunbook(rb.ID, folderID)
	})
	if err != nil {
		return nil, opErr(OpRunbookCreate, rb.ID, "cannot update folder state", err)
	}
	payload := models.RunbookCreated{WorkspaceID: ws.ID, RunbookID: rb.ID, Name: name, FolderID: folderID}
	if err := s.append(ctx, ws.ID, payload, ref); err != nil {
		return nil, opErr(OpRunbookCreate, rb.ID, "cannot enqueue operation", err)
	}
	return rb, nil
}

// DeleteRunbook removes the runbook from the shared folder document, then
// enqueues the tombstone and drops the local row in one transaction so a
// crash cannot leave a deleted row without its tombstone.
func (s *Online) DeleteRunbook(ctx context.Context, ws *models.Workspace, runbookID string) error {
	ref, err := s.mutateFolders(ctx, ws, func(t *foldertree.Tree) bool {
		return t.DeleteRunbook(runbookID)
	})
	if err != nil {
		return opErr(OpRunbookDelete, runbookID, "cannot update folder state", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		op := &models.Operation{
			ID:          uuid.NewString(),
			WorkspaceID: ws.ID,
			Payload:     models.RunbookDeleted{WorkspaceID: ws.ID, RunbookID: runbookID},
			ChangeRef:   ref,
		}
		if err := oplog.NewSQLiteRepository(tx).Append(ctx, op); err != nil {
			return err
		}
		if err := runbooks.NewSQLiteRepository(tx).Delete(ctx, runbookID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return opErr(OpRunbookDelete, runbookID, "cannot delete runbook", err)
	}
	return nil
}

// mutateFolders runs one optimistic mutation against the workspace's shared
// folder document. The returned change ref is zero when the mutator declined.
func (s *Online) mutateFolders(ctx context.Context, ws *models.Workspace, mutate func(*foldertree.Tree) bool) (models.ChangeRef, error) {
	h, err := s.shared.Acquire(FolderKey(ws.ID), s.adapters(ws.ID))
	if err != nil {
		return 0, err
	}
	defer h.Close()

	return h.UpdateOptimistic(ctx, func(doc []byte) ([]byte, bool) {
		tree, err := foldertree.FromDoc(doc)
		if err != nil {
			s.log.Error(ctx, "workspace folder document is invalid", "workspace_id", ws.ID, "error", err)
			return nil, false
		}
		if !mutate(tree) {
			return nil, false
		}
		return tree.ToDoc(), true
	})
}

func (s *Online) append(ctx context.Context, workspaceID string, payload models.OperationPayload, ref models.ChangeRef) error {
	return s.oplog.Append(ctx, &models.Operation{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Payload:     payload,
		ChangeRef:   ref,
	})
}
