// Package api implements the client for the remote runbook server: an
// authenticated HTTPS/JSON surface. Responses are classified per status
// class: not-found is absorbed as expected state, 5xx and transport errors
// are retried, remaining 4xx carry the server message to the caller.
package api

import (
	"context"

	"github.com/opsbookhq/opsbook/internal/models"
)

// RemoteWorkspace is the server's representation of a workspace.
type RemoteWorkspace struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	OrgID       string   `json:"org_id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// RemoteRunbook is the server's representation of a runbook. ContentHash is
// the fingerprint of Content as computed by the server; when absent the
// client derives it locally.
type RemoteRunbook struct {
	ID          string   `json:"id"`
	WorkspaceID string   `json:"workspace_id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
	Content     []byte   `json:"content,omitempty"`
	ContentHash string   `json:"content_hash,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Fingerprint returns the server-provided content hash, deriving one from
// the content when the server omitted it.
func (r *RemoteRunbook) Fingerprint() string {
	if r.ContentHash != "" {
		return r.ContentHash
	}
	return models.ContentFingerprint(r.Content)
}

// RemoteInfo converts the remote record into the locally cached descriptor.
func (r *RemoteRunbook) RemoteInfo() *models.RemoteInfo {
	return &models.RemoteInfo{
		RemoteID:    r.ID,
		Slug:        r.Slug,
		Visibility:  r.Visibility,
		Permissions: r.Permissions,
		Tags:        r.Tags,
	}
}

type CreateWorkspaceRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	OrgID string `json:"org_id,omitempty"`
}

type CreateRunbookRequest struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Content     []byte `json:"content"`
}

type UpdateRunbookRequest struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type CreateSnapshotRequest struct {
	RunbookID string `json:"runbook_id"`
	Tag       string `json:"tag"`
	Content   []byte `json:"content"`
}

// Client is the remote server capability consumed by the strategies, the
// runbook synchronizer and the sync manager.
type Client interface {
	GetWorkspaces(ctx context.Context) ([]RemoteWorkspace, error)
	CreateUserWorkspace(ctx context.Context, req CreateWorkspaceRequest) (*RemoteWorkspace, error)
	GetWorkspace(ctx context.Context, id string) (*RemoteWorkspace, error)

	// GetRunbook resolves a runbook by id or by its "nwo" (owner/slug).
	GetRunbook(ctx context.Context, nwoOrID string) (*RemoteRunbook, error)
	CreateRunbook(ctx context.Context, req CreateRunbookRequest) (*RemoteRunbook, error)
	UpdateRunbook(ctx context.Context, id string, req UpdateRunbookRequest) (*RemoteRunbook, error)

	CreateSnapshot(ctx context.Context, req CreateSnapshotRequest) error
	DeleteSnapshot(ctx context.Context, runbookID, tag string) error

	// AcceptCollaboration / DeclineCollaboration resolve an invitation.
	// A 4xx answer means "already resolved" and is absorbed.
	AcceptCollaboration(ctx context.Context, invitationID string) error
	DeclineCollaboration(ctx context.Context, invitationID string) error

	// SubmitOperation delivers one operation-log entry. The server applies
	// it against its replicated state using the embedded change ref.
	SubmitOperation(ctx context.Context, op models.Operation) error
}
