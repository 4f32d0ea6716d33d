package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opsbookhq/opsbook/internal/common"
	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewHTTPClient(srv.URL, "test-token", srv.Client(), logging.NewDefault())
	c.maxRetries = 1
	c.baseDelay = time.Millisecond
	return c
}

func TestGetRunbook_ByIDAndNwo(t *testing.T) {
	var gotPath, gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(RemoteRunbook{ID: "r1", WorkspaceID: "w1", Name: "Deploy"})
	}))

	rb, err := c.GetRunbook(context.Background(), "acme/deploy")
	require.NoError(t, err)
	assert.Equal(t, "/api/runbooks/acme/deploy", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "r1", rb.ID)
}

func TestDo_NotFoundAbsorbedAsSentinel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such runbook", http.StatusNotFound)
	}))

	_, err := c.GetRunbook(context.Background(), "ghost")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestDo_ServerErrorIsRetriedThenUnavailable(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.GetWorkspaces(context.Background())
	assert.True(t, errors.Is(err, common.ErrUnavailable))
	assert.Equal(t, 2, calls, "one retry after the first 5xx")
}

func TestDo_ClientErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"invalid_tag","message":"tag already exists"}`))
	}))

	err := c.CreateSnapshot(context.Background(), CreateSnapshotRequest{RunbookID: "r1", Tag: "v1"})
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)
	assert.Equal(t, "invalid_tag", httpErr.Code)
	assert.Equal(t, "tag already exists", httpErr.Message)
	assert.False(t, IsRetryable(err))
}

func TestDo_Unauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	_, err := c.GetWorkspaces(context.Background())
	assert.True(t, errors.Is(err, common.ErrUnauthorized))
}

func TestAcceptCollaboration_AbsorbsAlreadyResolved(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"already accepted"}`, http.StatusConflict)
	}))

	assert.NoError(t, c.AcceptCollaboration(context.Background(), "inv1"))
	assert.NoError(t, c.DeclineCollaboration(context.Background(), "inv1"))
}

func TestSubmitOperation_Envelope(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/operations", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))

	op := models.Operation{
		ID:          "op1",
		WorkspaceID: "w1",
		Payload:     models.ItemsMoved{WorkspaceID: "w1", ItemIDs: []string{"r1"}, NewParentID: "f2"},
		ChangeRef:   7,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, c.SubmitOperation(context.Background(), op))

	assert.Equal(t, "op1", got["id"])
	assert.Equal(t, string(models.KindItemsMoved), got["type"])
	assert.Equal(t, float64(7), got["change_ref"])
	payload, ok := got["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "f2", payload["new_parent_id"])
}

func TestTokenExpiry(t *testing.T) {
	_, ok := TokenExpiry("not-a-jwt")
	assert.False(t, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	got, ok := TokenExpiry(signed)
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}
