package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RunbookSource records provenance: created locally or imported from the hub.
type RunbookSource string

const (
	SourceLocal RunbookSource = "local"
	SourceHub   RunbookSource = "hub"
)

// RemoteInfo is the cached descriptor of a runbook's remote record. It is
// nil unless a corresponding remote record is confirmed to exist.
type RemoteInfo struct {
	RemoteID    string   `json:"remote_id"`
	Slug        string   `json:"slug"`
	Visibility  string   `json:"visibility"`
	Permissions []string `json:"permissions,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Runbook is an ordered sequence of executable blocks, serialized in Content.
type Runbook struct {
	ID          string
	WorkspaceID string
	Name        string
	Content     []byte
	Source      RunbookSource
	Remote      *RemoteInfo
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Fingerprint returns a comparable summary of the runbook content, used to
// decide whether local and remote copies diverge.
func (r *Runbook) Fingerprint() string {
	return ContentFingerprint(r.Content)
}

// ContentFingerprint is the sha256 hex digest of the serialized content.
func ContentFingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
