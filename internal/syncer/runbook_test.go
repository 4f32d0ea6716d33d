package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/opsbookhq/opsbook/internal/api"
	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/opsbookhq/opsbook/internal/store"
	"github.com/opsbookhq/opsbook/internal/store/runbooks"
	"github.com/opsbookhq/opsbook/internal/store/workspaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient overrides the calls the synchronizer and manager make; the
// remaining surface is unused.
type fakeClient struct {
	api.Client
	getRunbook    func(nwoOrID string) (*api.RemoteRunbook, error)
	getWorkspace  func(id string) (*api.RemoteWorkspace, error)
	acceptInvite  func(invitationID string) error
	submit        func(op models.Operation) error
	submittedOps  []models.Operation
}

func (f *fakeClient) GetRunbook(ctx context.Context, nwoOrID string) (*api.RemoteRunbook, error) {
	return f.getRunbook(nwoOrID)
}

func (f *fakeClient) GetWorkspace(ctx context.Context, id string) (*api.RemoteWorkspace, error) {
	if f.getWorkspace == nil {
		return nil, common.ErrNotFound
	}
	return f.getWorkspace(id)
}

func (f *fakeClient) AcceptCollaboration(ctx context.Context, invitationID string) error {
	return f.acceptInvite(invitationID)
}

func (f *fakeClient) SubmitOperation(ctx context.Context, op models.Operation) error {
	if f.submit != nil {
		if err := f.submit(op); err != nil {
			return err
		}
	}
	f.submittedOps = append(f.submittedOps, op)
	return nil
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSynchronizer(t *testing.T, db *sql.DB, client api.Client) *Synchronizer {
	t.Helper()
	return NewSynchronizer(client,
		workspaces.NewSQLiteRepository(db),
		runbooks.NewSQLiteRepository(db),
		logging.NewDefault())
}

func seedRunbook(t *testing.T, db *sql.DB, rb *models.Runbook) {
	t.Helper()
	require.NoError(t, runbooks.NewSQLiteRepository(db).CreateOrUpdate(context.Background(), rb))
}

func TestSync_MaterializesRemoteRunbook(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	client := &fakeClient{
		getRunbook: func(id string) (*api.RemoteRunbook, error) {
			return &api.RemoteRunbook{
				ID: id, WorkspaceID: "w-remote", Name: "Deploy",
				Content: []byte(`{"blocks":[]}`), Slug: "team/deploy",
			}, nil
		},
		getWorkspace: func(id string) (*api.RemoteWorkspace, error) {
			return &api.RemoteWorkspace{ID: id, Name: "Team"}, nil
		},
	}

	s := newSynchronizer(t, db, client)
	action, err := s.Sync(ctx, "r1", "", "alice")
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, action)

	rb, err := runbooks.NewSQLiteRepository(db).GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "w-remote", rb.WorkspaceID, "workspace derived from the remote record")
	assert.Equal(t, models.SourceHub, rb.Source)
	require.NotNil(t, rb.Remote)
	assert.Equal(t, "team/deploy", rb.Remote.Slug)

	ws, err := workspaces.NewSQLiteRepository(db).GetByID(ctx, "w-remote")
	require.NoError(t, err)
	assert.Equal(t, "Team", ws.Name)
}

func TestSync_NoopWhenFingerprintsMatch(t *testing.T) {
	db := setupDB(t)
	content := []byte(`{"blocks":[1,2]}`)
	seedRunbook(t, db, &models.Runbook{ID: "r1", WorkspaceID: "w1", Name: "Deploy", Content: content})
	client := &fakeClient{
		getRunbook: func(id string) (*api.RemoteRunbook, error) {
			return &api.RemoteRunbook{ID: id, Name: "Deploy", Content: content}, nil
		},
	}

	s := newSynchronizer(t, db, client)
	action, err := s.Sync(context.Background(), "r1", "w1", "alice")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action)
}

func TestSync_RemoteWinsOnDivergence(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	seedRunbook(t, db, &models.Runbook{ID: "r1", WorkspaceID: "w1", Name: "Deploy", Content: []byte(`{"v":1}`)})
	client := &fakeClient{
		getRunbook: func(id string) (*api.RemoteRunbook, error) {
			return &api.RemoteRunbook{ID: id, Name: "Deploy v2", Content: []byte(`{"v":2}`)}, nil
		},
	}

	s := newSynchronizer(t, db, client)
	action, err := s.Sync(ctx, "r1", "w1", "alice")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, action)

	rb, err := runbooks.NewSQLiteRepository(db).GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Deploy v2", rb.Name)
	assert.JSONEq(t, `{"v":2}`, string(rb.Content))
}

func TestSync_RemoteGoneIsNoop(t *testing.T) {
	db := setupDB(t)
	seedRunbook(t, db, &models.Runbook{ID: "r1", WorkspaceID: "w1", Name: "Deploy"})
	client := &fakeClient{
		getRunbook: func(string) (*api.RemoteRunbook, error) { return nil, common.ErrNotFound },
	}

	s := newSynchronizer(t, db, client)
	action, err := s.Sync(context.Background(), "r1", "w1", "alice")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, action)
}

func TestSync_FetchErrorPropagates(t *testing.T) {
	db := setupDB(t)
	client := &fakeClient{
		getRunbook: func(string) (*api.RemoteRunbook, error) { return nil, common.ErrUnavailable },
	}

	s := newSynchronizer(t, db, client)
	_, err := s.Sync(context.Background(), "r1", "", "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnavailable))
}

func TestSync_PlaceholderWorkspaceWhenUnreachable(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	client := &fakeClient{
		getRunbook: func(id string) (*api.RemoteRunbook, error) {
			return &api.RemoteRunbook{ID: id, WorkspaceID: "w-remote", Name: "Deploy"}, nil
		},
		getWorkspace: func(string) (*api.RemoteWorkspace, error) {
			return nil, fmt.Errorf("lookup: %w", common.ErrUnavailable)
		},
	}

	s := newSynchronizer(t, db, client)
	action, err := s.Sync(ctx, "r1", "", "alice")
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, action)

	ws, err := workspaces.NewSQLiteRepository(db).GetByID(ctx, "w-remote")
	require.NoError(t, err)
	assert.Equal(t, "Shared with alice", ws.Name)
}

func TestAcceptInvitation_FocusOnlyWhenCreated(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	var accepted []string
	client := &fakeClient{
		getRunbook: func(id string) (*api.RemoteRunbook, error) {
			return &api.RemoteRunbook{ID: id, WorkspaceID: "w1", Name: "Shared", Content: []byte(`{}`)}, nil
		},
		getWorkspace: func(id string) (*api.RemoteWorkspace, error) {
			return &api.RemoteWorkspace{ID: id, Name: "Team"}, nil
		},
		acceptInvite: func(id string) error { accepted = append(accepted, id); return nil },
	}

	s := newSynchronizer(t, db, client)
	focus, err := s.AcceptInvitation(ctx, "inv-1", "r1", "alice")
	require.NoError(t, err)
	assert.True(t, focus, "newly materialized runbook takes focus")
	assert.Equal(t, []string{"inv-1"}, accepted)

	// Accepting again: the runbook already exists locally, focus stays put.
	focus, err = s.AcceptInvitation(ctx, "inv-2", "r1", "alice")
	require.NoError(t, err)
	assert.False(t, focus)
}
