package strategy

import "fmt"

// Op names the strategy operation that failed.
type Op string

const (
	OpWorkspaceCreate Op = "workspace-create"
	OpWorkspaceRename Op = "workspace-rename"
	OpFolderCreate    Op = "folder-create"
	OpFolderRename    Op = "folder-rename"
	OpFolderDelete    Op = "folder-delete"
	OpItemsMove       Op = "items-move"
	OpRunbookCreate   Op = "runbook-create"
	OpRunbookDelete   Op = "runbook-delete"
)

// OpError is the typed failure returned by strategy methods, carrying the
// offending resource id and a human-readable message. Strategies return it,
// they never panic.
type OpError struct {
	Op         Op
	ResourceID string
	Message    string
	Err        error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s failed on %q: %s", e.Op, e.ResourceID, e.Message)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op Op, resourceID, message string, err error) *OpError {
	return &OpError{Op: op, ResourceID: resourceID, Message: message, Err: err}
}
