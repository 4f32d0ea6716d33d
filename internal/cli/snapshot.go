package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opsbookhq/opsbook/internal/api"
	"github.com/opsbookhq/opsbook/internal/models"
)

// Publish tags the runbook's current content as an immutable snapshot, both
// locally and on the server. Publishing is an explicit user action, so the
// remote call happens synchronously instead of riding the operation log.
func (a *App) Publish(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: publish <runbook> <tag>")
	}
	if a.api == nil {
		return fmt.Errorf("publish needs a server session, run login first")
	}
	runbookID, tag := args[0], args[1]

	rb, err := a.runbooks.GetByID(ctx, runbookID)
	if err != nil {
		return err
	}
	snap := &models.Snapshot{
		ID:        uuid.NewString(),
		RunbookID: rb.ID,
		Tag:       tag,
		Content:   rb.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.snapshots.Create(ctx, snap); err != nil {
		return err
	}
	if err := a.api.CreateSnapshot(ctx, api.CreateSnapshotRequest{
		RunbookID: rb.ID,
		Tag:       tag,
		Content:   rb.Content,
	}); err != nil {
		return fmt.Errorf("snapshot stored locally but not published: %w", err)
	}
	printlnFn("Published", tag)
	return nil
}

// Unpublish removes a snapshot locally and enqueues the deletion for
// background delivery.
func (a *App) Unpublish(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: unpublish <runbook> <tag>")
	}
	runbookID, tag := args[0], args[1]

	rb, err := a.runbooks.GetByID(ctx, runbookID)
	if err != nil {
		return err
	}
	if err := a.snapshots.Delete(ctx, runbookID, tag); err != nil {
		return err
	}
	op := &models.Operation{
		ID:          uuid.NewString(),
		WorkspaceID: rb.WorkspaceID,
		Payload:     models.SnapshotDeleted{WorkspaceID: rb.WorkspaceID, RunbookID: runbookID, Tag: tag},
	}
	if err := a.oplog.Append(ctx, op); err != nil {
		return err
	}
	a.notifySync()
	printlnFn("Unpublished", tag)
	return nil
}
