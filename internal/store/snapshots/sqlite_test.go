package snapshots

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

func TestCreateAndList(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Snapshot{ID: "s1", RunbookID: "r1", Tag: "v1", Content: []byte("one")}))
	require.NoError(t, r.Create(ctx, &models.Snapshot{ID: "s2", RunbookID: "r1", Tag: "v2", Content: []byte("two")}))
	require.NoError(t, r.Create(ctx, &models.Snapshot{ID: "s3", RunbookID: "r2", Tag: "v1", Content: []byte("other")}))

	list, err := r.ListByRunbook(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "v2", list[0].Tag, "newest first")
	assert.Equal(t, "v1", list[1].Tag)
}

func TestCreate_DuplicateTagRejected(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Snapshot{ID: "s1", RunbookID: "r1", Tag: "v1", Content: []byte("one")}))
	err := r.Create(ctx, &models.Snapshot{ID: "s2", RunbookID: "r1", Tag: "v1", Content: []byte("two")})
	assert.Error(t, err, "(runbook_id, tag) must be unique")

	// Same tag on another runbook is fine.
	require.NoError(t, r.Create(ctx, &models.Snapshot{ID: "s3", RunbookID: "r2", Tag: "v1", Content: []byte("x")}))
}

func TestDelete(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &models.Snapshot{ID: "s1", RunbookID: "r1", Tag: "v1", Content: []byte("one")}))
	require.NoError(t, r.Delete(ctx, "r1", "v1"))

	err := r.Delete(ctx, "r1", "v1")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
