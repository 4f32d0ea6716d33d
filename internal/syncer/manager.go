package syncer

import (
	"context"
	"time"

	"github.com/opsbookhq/opsbook/internal/api"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/store/oplog"
)

const defaultDrainInterval = 15 * time.Second

// Manager drains the operation log in the background: every pending
// operation is submitted to the server in append order, removed on success
// and left in place on failure for the next pass. It is constructed once per
// process and injected; appenders never wait for it.
type Manager struct {
	oplog    oplog.Repository
	api      api.Client
	interval time.Duration
	log      logging.Logger

	notify  chan struct{}
	updates chan string
}

func NewManager(repo oplog.Repository, client api.Client, interval time.Duration, log logging.Logger) *Manager {
	if interval <= 0 {
		interval = defaultDrainInterval
	}
	return &Manager{
		oplog:    repo,
		api:      client,
		interval: interval,
		log:      log,
		notify:   make(chan struct{}, 1),
		updates:  make(chan string, 64),
	}
}

// Notify requests a drain pass ahead of the next tick. It never blocks; a
// pass already requested absorbs further notifications.
func (m *Manager) Notify() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Updates delivers the workspace id of every successfully delivered
// operation, for cache invalidation. Slow consumers drop notifications
// rather than stall the drain loop.
func (m *Manager) Updates() <-chan string {
	return m.updates
}

// Run drains until ctx is cancelled. The first pass starts immediately so a
// backlog from the previous process run is not held until the first tick.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.drain(ctx)
		case <-m.notify:
			m.drain(ctx)
		}
	}
}

// drain submits pending operations in append order. A failed submission
// blocks the rest of that workspace's queue for this pass so per-workspace
// FIFO delivery is preserved; other workspaces keep draining.
func (m *Manager) drain(ctx context.Context) {
	ops, err := m.oplog.ListPending(ctx)
	if err != nil {
		m.log.Error(ctx, "cannot list pending operations", "error", err)
		return
	}

	blocked := make(map[string]bool)
	for _, op := range ops {
		if blocked[op.WorkspaceID] {
			continue
		}
		if err := m.api.SubmitOperation(ctx, op); err != nil {
			blocked[op.WorkspaceID] = true
			if api.IsRetryable(err) {
				m.log.Info(ctx, "server unreachable, operation stays pending",
					"operation_id", op.ID, "kind", op.Payload.Kind())
			} else {
				m.log.Error(ctx, "operation rejected, will retry next pass",
					"operation_id", op.ID, "kind", op.Payload.Kind(), "error", err)
			}
			continue
		}
		if err := m.oplog.Remove(ctx, op.ID); err != nil {
			m.log.Error(ctx, "cannot remove delivered operation",
				"operation_id", op.ID, "error", err)
			continue
		}
		m.emit(op.WorkspaceID)
	}
}

func (m *Manager) emit(workspaceID string) {
	select {
	case m.updates <- workspaceID:
	default:
	}
}
