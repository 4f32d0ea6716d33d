package oplog

import (
	"context"

	"github.com/opsbookhq/opsbook/internal/models"
)

// Repository is the durable, ordered outbox of user-intent mutations
// awaiting delivery to the server.
//
// Operations for a given workspace are delivered in append order; only the
// sync manager removes entries, and only after acknowledgment. The log must
// survive process restart with every undelivered entry intact.
type Repository interface {
	// Append persists an operation durably before returning.
	Append(ctx context.Context, op *models.Operation) error

	// ListPending returns all undelivered operations in append order.
	ListPending(ctx context.Context) ([]models.Operation, error)

	// Remove deletes an operation after confirmed delivery.
	Remove(ctx context.Context, id string) error
}
