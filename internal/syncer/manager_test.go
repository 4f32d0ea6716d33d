package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/opsbookhq/opsbook/internal/store/oplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendOp(t *testing.T, repo oplog.Repository, id, workspaceID string, payload models.OperationPayload) {
	t.Helper()
	require.NoError(t, repo.Append(context.Background(), &models.Operation{
		ID:          id,
		WorkspaceID: workspaceID,
		Payload:     payload,
	}))
}

func TestDrain_DeliversFIFOAndRemoves(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := oplog.NewSQLiteRepository(db)
	appendOp(t, repo, "op1", "w1", models.FolderCreated{WorkspaceID: "w1", FolderID: "f1", Name: "A"})
	appendOp(t, repo, "op2", "w1", models.FolderRenamed{WorkspaceID: "w1", FolderID: "f1", Name: "B"})

	client := &fakeClient{}
	m := NewManager(repo, client, time.Hour, logging.NewDefault())
	m.drain(ctx)

	require.Len(t, client.submittedOps, 2)
	assert.Equal(t, "op1", client.submittedOps[0].ID, "operations are delivered in append order")
	assert.Equal(t, "op2", client.submittedOps[1].ID)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "delivered operations are removed")

	select {
	case workspaceID := <-m.Updates():
		assert.Equal(t, "w1", workspaceID)
	default:
		t.Fatal("expected an update notification")
	}
}

func TestDrain_TransientFailureLeavesQueueIntact(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := oplog.NewSQLiteRepository(db)
	appendOp(t, repo, "op1", "w1", models.FolderCreated{WorkspaceID: "w1", FolderID: "f1", Name: "A"})
	appendOp(t, repo, "op2", "w1", models.FolderDeleted{WorkspaceID: "w1", FolderID: "f1"})

	calls := 0
	client := &fakeClient{submit: func(models.Operation) error {
		calls++
		return common.ErrUnavailable
	}}
	m := NewManager(repo, client, time.Hour, logging.NewDefault())
	m.drain(ctx)

	assert.Equal(t, 1, calls, "a failed workspace queue is not drained further this pass")
	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "op1", pending[0].ID, "order is preserved for the next pass")
}

func TestDrain_FailedWorkspaceDoesNotBlockOthers(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := oplog.NewSQLiteRepository(db)
	appendOp(t, repo, "op1", "w1", models.FolderCreated{WorkspaceID: "w1", FolderID: "f1", Name: "A"})
	appendOp(t, repo, "op2", "w2", models.FolderCreated{WorkspaceID: "w2", FolderID: "f2", Name: "B"})

	client := &fakeClient{submit: func(op models.Operation) error {
		if op.WorkspaceID == "w1" {
			return errors.New("rejected")
		}
		return nil
	}}
	m := NewManager(repo, client, time.Hour, logging.NewDefault())
	m.drain(ctx)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "op1", pending[0].ID, "only the failed workspace keeps its backlog")
}

func TestRun_NotifyTriggersDrain(t *testing.T) {
	db := setupDB(t)
	repo := oplog.NewSQLiteRepository(db)

	delivered := make(chan string, 1)
	client := &fakeClient{submit: func(op models.Operation) error {
		select {
		case delivered <- op.ID:
		default:
		}
		return nil
	}}
	m := NewManager(repo, client, time.Hour, logging.NewDefault())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// The backlog is empty at startup; append after Run begins and notify.
	appendOp(t, repo, "op1", "w1", models.WorkspaceRenamed{WorkspaceID: "w1", Name: "Prod"})
	m.Notify()

	select {
	case id := <-delivered:
		assert.Equal(t, "op1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("notify did not trigger a drain pass")
	}

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on cancellation")
	}
}
