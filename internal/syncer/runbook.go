// Package syncer reconciles local runbook rows with the remote server and
// drains the operation log in the background.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opsbookhq/opsbook/internal/api"
	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/opsbookhq/opsbook/internal/store/runbooks"
	"github.com/opsbookhq/opsbook/internal/store/workspaces"
)

// Action reports what one Sync invocation did.
type Action string

const (
	// ActionCreated means a new local row was materialized from the remote
	// record; callers may activate or open the runbook.
	ActionCreated Action = "created"
	// ActionUpdated means the local row diverged and was overwritten with
	// the remote content.
	ActionUpdated Action = "updated"
	// ActionNoop means local and remote copies already agree.
	ActionNoop Action = "noop"
)

// Synchronizer reconciles one runbook at a time against the server. Each
// invocation runs the full check-local / fetch-remote / materialize sequence;
// nothing is persisted between invocations.
type Synchronizer struct {
	api        api.Client
	workspaces workspaces.Repository
	runbooks   runbooks.Repository
	log        logging.Logger
}

func NewSynchronizer(client api.Client, ws workspaces.Repository, rb runbooks.Repository, log logging.Logger) *Synchronizer {
	return &Synchronizer{api: client, workspaces: ws, runbooks: rb, log: log}
}

// Sync reconciles runbookID. With a local row present, the content
// fingerprint is compared against the remote record and the remote copy wins
// on divergence. Absent locally, the remote definition is fetched and
// materialized, deriving the workspace from the remote record when
// workspaceID is empty.
//
// Partial materialization (workspace row created, runbook save fails) is not
// rolled back; the next Sync for the same id converges.
func (s *Synchronizer) Sync(ctx context.Context, runbookID, workspaceID, user string) (Action, error) {
	local, err := s.runbooks.GetByID(ctx, runbookID)
	switch {
	case err == nil:
		return s.reconcile(ctx, local)
	case errors.Is(err, common.ErrNotFound):
		return s.materialize(ctx, runbookID, workspaceID, user)
	default:
		return ActionNoop, fmt.Errorf("failed to look up runbook %s: %w", runbookID, err)
	}
}

// AcceptInvitation resolves a collaboration invitation and synchronizes the
// shared runbook. focus is true only when the runbook was newly materialized,
// so an already-open runbook never steals focus.
func (s *Synchronizer) AcceptInvitation(ctx context.Context, invitationID, runbookID, user string) (focus bool, err error) {
	if err := s.api.AcceptCollaboration(ctx, invitationID); err != nil {
		return false, fmt.Errorf("failed to accept invitation %s: %w", invitationID, err)
	}
	action, err := s.Sync(ctx, runbookID, "", user)
	if err != nil {
		return false, err
	}
	return action == ActionCreated, nil
}

func (s *Synchronizer) reconcile(ctx context.Context, local *models.Runbook) (Action, error) {
	remoteID := local.ID
	if local.Remote != nil && local.Remote.RemoteID != "" {
		remoteID = local.Remote.RemoteID
	}
	remote, err := s.api.GetRunbook(ctx, remoteID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// No remote record to reconcile against.
			return ActionNoop, nil
		}
		return ActionNoop, err
	}

	if remote.Fingerprint() == local.Fingerprint() {
		return ActionNoop, nil
	}

	local.Name = remote.Name
	local.Content = remote.Content
	local.Remote = remote.RemoteInfo()
	local.UpdatedAt = time.Now().UTC()
	if err := s.runbooks.CreateOrUpdate(ctx, local); err != nil {
		return ActionNoop, fmt.Errorf("failed to update runbook %s: %w", local.ID, err)
	}
	if err := s.runbooks.UpdateRemoteInfo(ctx, local.ID, local.Remote); err != nil {
		return ActionNoop, fmt.Errorf("failed to cache remote descriptor for %s: %w", local.ID, err)
	}
	return ActionUpdated, nil
}

func (s *Synchronizer) materialize(ctx context.Context, runbookID, workspaceID, user string) (Action, error) {
	remote, err := s.api.GetRunbook(ctx, runbookID)
	if err != nil {
		return ActionNoop, fmt.Errorf("failed to fetch runbook %s: %w", runbookID, err)
	}

	if workspaceID == "" {
		workspaceID = remote.WorkspaceID
	}
	if err := s.ensureWorkspace(ctx, workspaceID, user); err != nil {
		return ActionNoop, err
	}

	now := time.Now().UTC()
	rb := &models.Runbook{
		ID:          remote.ID,
		WorkspaceID: workspaceID,
		Name:        remote.Name,
		Content:     remote.Content,
		Source:      models.SourceHub,
		Remote:      remote.RemoteInfo(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.runbooks.CreateOrUpdate(ctx, rb); err != nil {
		return ActionNoop, fmt.Errorf("failed to materialize runbook %s: %w", runbookID, err)
	}
	if err := s.runbooks.UpdateRemoteInfo(ctx, rb.ID, rb.Remote); err != nil {
		return ActionNoop, fmt.Errorf("failed to cache remote descriptor for %s: %w", rb.ID, err)
	}
	return ActionCreated, nil
}

// ensureWorkspace creates a local workspace row when the remote record points
// at a workspace this client has never seen.
func (s *Synchronizer) ensureWorkspace(ctx context.Context, workspaceID, user string) error {
	_, err := s.workspaces.GetByID(ctx, workspaceID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to look up workspace %s: %w", workspaceID, err)
	}

	now := time.Now().UTC()
	ws := &models.Workspace{
		ID:        workspaceID,
		Name:      "Shared with " + user,
		Mode:      models.ModeOnline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if remote, err := s.api.GetWorkspace(ctx, workspaceID); err == nil {
		ws.Name = remote.Name
		ws.OrgID = remote.OrgID
		ws.Permissions = remote.Permissions
	} else {
		s.log.Warn(ctx, "cannot fetch remote workspace, materializing a placeholder",
			"workspace_id", workspaceID, "error", err)
	}
	if err := s.workspaces.CreateOrUpdate(ctx, ws); err != nil {
		return fmt.Errorf("failed to materialize workspace %s: %w", workspaceID, err)
	}
	return nil
}
