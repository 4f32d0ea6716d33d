// Package backend defines the native backend capability consumed by offline
// workspaces: filesystem workspace operations and a file-watch subscription.
// The engine treats it as an opaque surface; the filesystem implementation
// in this package is the production one.
package backend

import (
	"context"
	"fmt"

	"github.com/opsbookhq/opsbook/internal/models"
)

// ErrorKind classifies a workspace error variant.
type ErrorKind string

const (
	KindCreate ErrorKind = "create"
	KindRename ErrorKind = "rename"
	KindDelete ErrorKind = "delete"
	KindRead   ErrorKind = "read"
)

// WorkspaceError is the typed failure returned by every backend operation,
// carrying the offending resource id and a human-readable message.
type WorkspaceError struct {
	Kind       ErrorKind
	ResourceID string
	Message    string
	Err        error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s error on %q: %s", e.Kind, e.ResourceID, e.Message)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// Entry is one element of a workspace directory snapshot. Folders are
// identified by their workspace-relative path; runbook entries additionally
// carry the runbook id parsed from the document header.
type Entry struct {
	RelPath   string
	IsDir     bool
	RunbookID string
}

// EventType tags file-watch events.
type EventType string

const (
	// EventState carries a fresh full snapshot after structural changes.
	EventState EventType = "state"
	// EventError reports a watcher failure; the subscription stays up.
	EventError EventType = "error"
	// EventRunbookChanged reports that a runbook document was written.
	EventRunbookChanged EventType = "runbook-changed"
	// EventRunbookDeleted reports that a runbook document was removed.
	EventRunbookDeleted EventType = "runbook-deleted"
)

// Event is one file-watch notification.
type Event struct {
	Type      EventType
	Snapshot  []Entry
	RunbookID string
	Err       error
}

// Backend is the filesystem command surface for offline workspaces. All
// paths in folder arguments are workspace-relative ("" is the root).
type Backend interface {
	// CreateWorkspace initializes a workspace directory at path.
	CreateWorkspace(ctx context.Context, path, id, name string) error

	// RenameWorkspace updates the stored display name (the directory does
	// not move).
	RenameWorkspace(ctx context.Context, path, name string) error

	// CreateFolder creates a folder under parentRel and returns its
	// workspace-relative path.
	CreateFolder(ctx context.Context, path, parentRel, name string) (string, error)

	// RenameFolder renames a folder in place, returning the new relative path.
	RenameFolder(ctx context.Context, path, folderRel, name string) (string, error)

	// DeleteFolder removes a folder and everything under it.
	DeleteFolder(ctx context.Context, path, folderRel string) error

	// MoveItems moves files/folders (by relative path) under newParentRel.
	MoveItems(ctx context.Context, path string, rels []string, newParentRel string) error

	// CreateRunbook writes a new runbook document under folderRel.
	CreateRunbook(ctx context.Context, path string, rb *models.Runbook, folderRel string) error

	// SaveRunbook rewrites an existing runbook document wherever it lives.
	SaveRunbook(ctx context.Context, path string, rb *models.Runbook) error

	// DeleteRunbook removes a runbook document by id.
	DeleteRunbook(ctx context.Context, path, runbookID string) error

	// GetRunbook loads a runbook document by id.
	GetRunbook(ctx context.Context, path, runbookID string) (*models.Runbook, error)

	// ReadDir returns a full snapshot of the workspace tree.
	ReadDir(ctx context.Context, path string) ([]Entry, error)

	// WatchWorkspace subscribes onEvent to filesystem changes under path.
	// The returned teardown stops the watch.
	WatchWorkspace(path, id string, onEvent func(Event)) (func(), error)
}
