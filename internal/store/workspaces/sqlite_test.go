package workspaces

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/opsbookhq/opsbook/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateOrUpdate_InsertAndUpdate(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	w := &models.Workspace{
		ID:          "w1",
		Name:        "Personal",
		Mode:        models.ModeOnline,
		Permissions: []string{"read", "write"},
		OrgID:       "org1",
	}
	require.NoError(t, r.CreateOrUpdate(ctx, w))

	got, err := r.GetByID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Personal", got.Name)
	assert.Equal(t, models.ModeOnline, got.Mode)
	assert.Equal(t, []string{"read", "write"}, got.Permissions)
	assert.Equal(t, "org1", got.OrgID)

	w.Name = "Work"
	w.Mode = models.ModeLegacyHybrid
	require.NoError(t, r.CreateOrUpdate(ctx, w))

	got, err = r.GetByID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Work", got.Name)
	assert.Equal(t, models.ModeLegacyHybrid, got.Mode)
}

func TestGetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestList_OrderedByName(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.CreateOrUpdate(ctx, &models.Workspace{ID: "w1", Name: "Zulu", Mode: models.ModeOffline, Folder: "/tmp/z"}))
	require.NoError(t, r.CreateOrUpdate(ctx, &models.Workspace{ID: "w2", Name: "Alpha", Mode: models.ModeOnline}))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, "Zulu", list[1].Name)
	assert.Equal(t, "/tmp/z", list[1].Folder)
}

func TestRename(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.CreateOrUpdate(ctx, &models.Workspace{ID: "w1", Name: "Old", Mode: models.ModeOnline}))
	require.NoError(t, r.Rename(ctx, "w1", "New"))

	got, err := r.GetByID(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)

	err = r.Rename(ctx, "missing", "x")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
