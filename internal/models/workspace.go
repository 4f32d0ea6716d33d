// Package models defines the core data model of the sync engine: workspaces,
// runbooks, snapshots and the operation sum type carried by the operation log.
package models

import "time"

// WorkspaceMode selects how a workspace is backed. Exactly one mode is active
// at a time; switching modes is an explicit migration that moves every
// contained runbook.
type WorkspaceMode string

const (
	// ModeOnline keeps the workspace server-replicated through shared state.
	ModeOnline WorkspaceMode = "online"
	// ModeOffline keeps the workspace on the local filesystem; the
	// filesystem is the source of truth, observed by a file watcher.
	ModeOffline WorkspaceMode = "offline"
	// ModeLegacyHybrid is the transitional mode for workspaces created
	// before full server replication. Structural mutations follow the
	// online path.
	ModeLegacyHybrid WorkspaceMode = "legacy-hybrid"
)

// Workspace is a container of runbooks. ID is a stable UUID shared between
// the local store and the server. Folder is only meaningful in offline mode.
type Workspace struct {
	ID          string
	Name        string
	Mode        WorkspaceMode
	Folder      string
	Permissions []string
	OrgID       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Online reports whether structural mutations go through shared state and
// the operation log (true for both online and legacy-hybrid workspaces).
func (w *Workspace) Online() bool {
	return w.Mode == ModeOnline || w.Mode == ModeLegacyHybrid
}
