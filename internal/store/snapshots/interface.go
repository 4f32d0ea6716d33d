package snapshots

import (
	"context"

	"github.com/opsbookhq/opsbook/internal/models"
)

// Repository describes persistence for published snapshot tags. Snapshots
// are immutable: created once, listed, deleted, never updated.
type Repository interface {
	// Create inserts a snapshot. (runbook_id, tag) is unique; violating it
	// is an error.
	Create(ctx context.Context, s *models.Snapshot) error

	// ListByRunbook returns all snapshots of a runbook, newest first.
	ListByRunbook(ctx context.Context, runbookID string) ([]models.Snapshot, error)

	// Delete removes a snapshot by runbook id and tag.
	Delete(ctx context.Context, runbookID, tag string) error
}
