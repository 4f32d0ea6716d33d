package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/opsbookhq/opsbook/internal/common"
)

// ChangeRef correlates a local optimistic shared-state mutation with the
// Operation that will deliver it to the server. Zero means "no shared-state
// change accompanies this operation".
type ChangeRef int64

// OperationKind tags the closed set of operation payload variants.
type OperationKind string

const (
	KindWorkspaceCreated OperationKind = "workspace-created"
	KindWorkspaceRenamed OperationKind = "workspace-renamed"
	KindFolderCreated    OperationKind = "folder-created"
	KindFolderRenamed    OperationKind = "folder-renamed"
	KindFolderDeleted    OperationKind = "folder-deleted"
	KindRunbookCreated   OperationKind = "runbook-created"
	KindRunbookDeleted   OperationKind = "runbook-deleted"
	KindItemsMoved       OperationKind = "items-moved"
	KindSnapshotDeleted  OperationKind = "snapshot-deleted"
)

// OperationPayload is the closed sum of user-intent mutations awaiting
// delivery. Adding a variant requires touching DecodePayload and every
// exhaustive switch over Kind(); that is the point.
type OperationPayload interface {
	Kind() OperationKind
}

type WorkspaceCreated struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	OrgID       string `json:"org_id,omitempty"`
}

type WorkspaceRenamed struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
}

type FolderCreated struct {
	WorkspaceID string `json:"workspace_id"`
	FolderID    string `json:"folder_id"`
	ParentID    string `json:"parent_id,omitempty"`
	Name        string `json:"name"`
}

type FolderRenamed struct {
	WorkspaceID string `json:"workspace_id"`
	FolderID    string `json:"folder_id"`
	Name        string `json:"name"`
}

type FolderDeleted struct {
	WorkspaceID string `json:"workspace_id"`
	FolderID    string `json:"folder_id"`
}

type RunbookCreated struct {
	WorkspaceID string `json:"workspace_id"`
	RunbookID   string `json:"runbook_id"`
	Name        string `json:"name"`
	FolderID    string `json:"folder_id,omitempty"`
}

// RunbookDeleted is the tombstone enqueued before the local row is removed.
type RunbookDeleted struct {
	WorkspaceID string `json:"workspace_id"`
	RunbookID   string `json:"runbook_id"`
}

type ItemsMoved struct {
	WorkspaceID string   `json:"workspace_id"`
	ItemIDs     []string `json:"item_ids"`
	NewParentID string   `json:"new_parent_id,omitempty"`
	Index       int      `json:"index"`
}

type SnapshotDeleted struct {
	WorkspaceID string `json:"workspace_id"`
	RunbookID   string `json:"runbook_id"`
	Tag         string `json:"tag"`
}

func (WorkspaceCreated) Kind() OperationKind { return KindWorkspaceCreated }
func (WorkspaceRenamed) Kind() OperationKind { return KindWorkspaceRenamed }
func (FolderCreated) Kind() OperationKind    { return KindFolderCreated }
func (FolderRenamed) Kind() OperationKind    { return KindFolderRenamed }
func (FolderDeleted) Kind() OperationKind    { return KindFolderDeleted }
func (RunbookCreated) Kind() OperationKind   { return KindRunbookCreated }
func (RunbookDeleted) Kind() OperationKind   { return KindRunbookDeleted }
func (ItemsMoved) Kind() OperationKind       { return KindItemsMoved }
func (SnapshotDeleted) Kind() OperationKind  { return KindSnapshotDeleted }

// Operation is a durable, ordered record of a local intent not yet confirmed
// by the server. Append-only; removed only after acknowledgment.
type Operation struct {
	ID          string
	WorkspaceID string
	Payload     OperationPayload
	ChangeRef   ChangeRef
	CreatedAt   time.Time
}

// EncodePayload serializes the payload for durable storage.
func EncodePayload(p OperationPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.Kind(), err)
	}
	return b, nil
}

// DecodePayload reverses EncodePayload. An unknown kind is an error so a
// newer client's log entries are never silently dropped by an older one.
func DecodePayload(kind OperationKind, data []byte) (OperationPayload, error) {
	switch kind {
	case KindWorkspaceCreated:
		var v WorkspaceCreated
		return v, decode(kind, data, &v)
	case KindWorkspaceRenamed:
		var v WorkspaceRenamed
		return v, decode(kind, data, &v)
	case KindFolderCreated:
		var v FolderCreated
		return v, decode(kind, data, &v)
	case KindFolderRenamed:
		var v FolderRenamed
		return v, decode(kind, data, &v)
	case KindFolderDeleted:
		var v FolderDeleted
		return v, decode(kind, data, &v)
	case KindRunbookCreated:
		var v RunbookCreated
		return v, decode(kind, data, &v)
	case KindRunbookDeleted:
		var v RunbookDeleted
		return v, decode(kind, data, &v)
	case KindItemsMoved:
		var v ItemsMoved
		return v, decode(kind, data, &v)
	case KindSnapshotDeleted:
		var v SnapshotDeleted
		return v, decode(kind, data, &v)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownOperation, kind)
	}
}

func decode(kind OperationKind, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}
	return nil
}
