package models

import "time"

// Snapshot is a named, immutable tag of a runbook's content at a point in
// time. (RunbookID, Tag) is unique; snapshots are created by an explicit
// publish action and never mutated, only deleted.
type Snapshot struct {
	ID        string
	RunbookID string
	Tag       string
	Content   []byte
	CreatedAt time.Time
}
