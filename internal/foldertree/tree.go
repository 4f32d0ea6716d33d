// Package foldertree implements the workspace folder model: the hierarchical
// tree of folders and runbook references held inside a workspace's shared
// state document.
//
// The tree is a pure, synchronous, in-memory transformer. Every mutator
// returns a success flag instead of an error and treats structurally invalid
// requests as a no-op, so mutators are safe to run inside an optimistic
// shared-state update, including running twice against an already-applied
// document.
package foldertree

import (
	"encoding/json"
	"fmt"
)

// NodeType distinguishes folders from runbook references.
type NodeType string

const (
	NodeFolder  NodeType = "folder"
	NodeRunbook NodeType = "runbook"
)

// RootID is the parent id of top-level nodes.
const RootID = ""

// Item is the wire representation of one node in the shared document.
type Item struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Name     string   `json:"name,omitempty"`
	ParentID string   `json:"parent,omitempty"`
}

type doc struct {
	Items []Item `json:"items"`
}

type node struct {
	id       string
	typ      NodeType
	name     string
	parentID string
}

// Tree holds nodes indexed by id plus an ordered child list per parent.
type Tree struct {
	nodes    map[string]*node
	children map[string][]string
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		nodes:    make(map[string]*node),
		children: map[string][]string{RootID: {}},
	}
}

// FromDoc builds a tree from a raw shared-state document. Items whose parent
// is missing or whose id repeats make the document invalid.
func FromDoc(raw []byte) (*Tree, error) {
	t := New()
	if len(raw) == 0 {
		return t, nil
	}
	var d doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to parse folder document: %w", err)
	}
	// Two passes so parents may appear after children in the item list.
	for _, it := range d.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("folder document contains an item without id")
		}
		if _, dup := t.nodes[it.ID]; dup {
			return nil, fmt.Errorf("folder document contains duplicate id %q", it.ID)
		}
		t.nodes[it.ID] = &node{id: it.ID, typ: it.Type, name: it.Name, parentID: it.ParentID}
	}
	for _, it := range d.Items {
		if it.ParentID != RootID {
			parent, ok := t.nodes[it.ParentID]
			if !ok {
				return nil, fmt.Errorf("item %q references missing parent %q", it.ID, it.ParentID)
			}
			if parent.typ != NodeFolder {
				return nil, fmt.Errorf("item %q has non-folder parent %q", it.ID, it.ParentID)
			}
		}
		t.children[it.ParentID] = append(t.children[it.ParentID], it.ID)
	}
	return t, nil
}

// ToDoc serializes the tree back into the shared document form, depth-first
// in child order so the document is stable for a given tree.
func (t *Tree) ToDoc() []byte {
	d := doc{Items: t.walk(RootID, nil)}
	b, _ := json.Marshal(d)
	return b
}

func (t *Tree) walk(parentID string, out []Item) []Item {
	for _, id := range t.children[parentID] {
		n := t.nodes[id]
		out = append(out, Item{ID: n.id, Type: n.typ, Name: n.name, ParentID: n.parentID})
		if n.typ == NodeFolder {
			out = t.walk(id, out)
		}
	}
	return out
}

// Contains reports whether id exists in the tree.
func (t *Tree) Contains(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// FolderName returns the name of a folder, or "" when absent.
func (t *Tree) FolderName(id string) string {
	if n, ok := t.nodes[id]; ok && n.typ == NodeFolder {
		return n.name
	}
	return ""
}

// Children returns the ordered child ids of a folder (RootID for top level).
func (t *Tree) Children(parentID string) []string {
	return append([]string(nil), t.children[parentID]...)
}

// ParentOf returns the parent id of a node, or RootID when absent/top-level.
func (t *Tree) ParentOf(id string) string {
	if n, ok := t.nodes[id]; ok {
		return n.parentID
	}
	return RootID
}

// CreateFolder inserts a folder under parentID. False when the id is taken
// or the parent does not exist or is not a folder.
func (t *Tree) CreateFolder(id, parentID, name string) bool {
	if id == "" || t.Contains(id) || !t.validParent(parentID) {
		return false
	}
	t.nodes[id] = &node{id: id, typ: NodeFolder, name: name, parentID: parentID}
	t.children[parentID] = append(t.children[parentID], id)
	return true
}

// RenameFolder sets a folder's name. False when the folder is absent or the
// name is already current (so re-applying a rename reports no change).
func (t *Tree) RenameFolder(id, name string) bool {
	n, ok := t.nodes[id]
	if !ok || n.typ != NodeFolder || n.name == name {
		return false
	}
	n.name = name
	return true
}

// DeleteFolder removes a folder and all descendants. False when absent.
func (t *Tree) DeleteFolder(id string) bool {
	n, ok := t.nodes[id]
	if !ok || n.typ != NodeFolder {
		return false
	}
	t.removeSubtree(id)
	return true
}

// CreateRunbook inserts a runbook reference under parentID.
func (t *Tree) CreateRunbook(id, parentID string) bool {
	if id == "" || t.Contains(id) || !t.validParent(parentID) {
		return false
	}
	t.nodes[id] = &node{id: id, typ: NodeRunbook, parentID: parentID}
	t.children[parentID] = append(t.children[parentID], id)
	return true
}

// DeleteRunbook removes a runbook reference. False when absent.
func (t *Tree) DeleteRunbook(id string) bool {
	n, ok := t.nodes[id]
	if !ok || n.typ != NodeRunbook {
		return false
	}
	t.detach(id)
	delete(t.nodes, id)
	return true
}

// MoveItems atomically reparents ids under newParentID, inserting the group
// at index among the target's children (index beyond the end appends). The
// whole move is rejected when any id is unknown, the target is not a folder,
// or the move would make a folder its own ancestor.
func (t *Tree) MoveItems(ids []string, newParentID string, index int) bool {
	if len(ids) == 0 || !t.validParent(newParentID) {
		return false
	}
	moving := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !t.Contains(id) {
			return false
		}
		if _, dup := moving[id]; dup {
			return false
		}
		moving[id] = struct{}{}
	}
	// Cycle check: the target must not be one of the moved folders or live
	// inside their subtrees.
	for p := newParentID; p != RootID; p = t.nodes[p].parentID {
		if _, bad := moving[p]; bad {
			return false
		}
	}

	// Compute the prospective child order of the target first so an
	// already-applied move is detected as a no-op.
	prev := t.children[newParentID]
	rest := make([]string, 0, len(prev))
	for _, id := range prev {
		if _, moved := moving[id]; !moved {
			rest = append(rest, id)
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(rest) {
		index = len(rest)
	}
	next := make([]string, 0, len(rest)+len(ids))
	next = append(next, rest[:index]...)
	next = append(next, ids...)
	next = append(next, rest[index:]...)

	sameParents := true
	for _, id := range ids {
		if t.nodes[id].parentID != newParentID {
			sameParents = false
			break
		}
	}
	if sameParents && equalIDs(prev, next) {
		return false
	}

	for _, id := range ids {
		if t.nodes[id].parentID != newParentID {
			t.detach(id)
		}
	}
	t.children[newParentID] = next
	for _, id := range ids {
		t.nodes[id].parentID = newParentID
	}
	return true
}

func (t *Tree) validParent(parentID string) bool {
	if parentID == RootID {
		return true
	}
	n, ok := t.nodes[parentID]
	return ok && n.typ == NodeFolder
}

func (t *Tree) removeSubtree(id string) {
	// Detaching a child compacts t.children[id] in place, so iterate a copy.
	children := append([]string(nil), t.children[id]...)
	for _, child := range children {
		t.removeSubtree(child)
	}
	delete(t.children, id)
	t.detach(id)
	delete(t.nodes, id)
}

func (t *Tree) detach(id string) {
	parentID := t.nodes[id].parentID
	t.children[parentID] = remove(t.children[parentID], id)
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
