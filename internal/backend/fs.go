package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/opsbookhq/opsbook/internal/logging"
	"github.com/opsbookhq/opsbook/internal/models"
)

const (
	metaDir      = ".opsbook"
	metaFile     = "workspace.json"
	runbookExt   = ".opsbook.json"
	documentMode = 0o644
	folderMode   = 0o755
)

type workspaceMeta struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type runbookDoc struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
}

// FSBackend implements Backend directly on the local filesystem. Folders are
// directories; runbooks are "<id>.opsbook.json" documents; workspace
// identity lives in ".opsbook/workspace.json".
type FSBackend struct {
	log logging.Logger
}

func NewFSBackend(log logging.Logger) *FSBackend {
	return &FSBackend{log: log}
}

func (b *FSBackend) WatchWorkspace(path, id string, onEvent func(Event)) (func(), error) {
	return NewWatcher(b, b.log).Watch(path, id, onEvent)
}

func (b *FSBackend) CreateWorkspace(ctx context.Context, path, id, name string) error {
	if err := os.MkdirAll(filepath.Join(path, metaDir), folderMode); err != nil {
		return &WorkspaceError{Kind: KindCreate, ResourceID: id, Message: "cannot create workspace directory", Err: err}
	}
	return b.writeMeta(path, id, workspaceMeta{ID: id, Name: name})
}

func (b *FSBackend) RenameWorkspace(ctx context.Context, path, name string) error {
	meta, err := b.readMeta(path)
	if err != nil {
		return err
	}
	meta.Name = name
	return b.writeMeta(path, meta.ID, *meta)
}

func (b *FSBackend) CreateFolder(ctx context.Context, path, parentRel, name string) (string, error) {
	rel := filepath.Join(parentRel, name)
	abs, err := b.resolve(path, rel)
	if err != nil {
		return "", &WorkspaceError{Kind: KindCreate, ResourceID: rel, Message: "invalid folder path", Err: err}
	}
	if _, err := os.Stat(abs); err == nil {
		return "", &WorkspaceError{Kind: KindCreate, ResourceID: rel, Message: "folder already exists"}
	}
	if err := os.MkdirAll(abs, folderMode); err != nil {
		return "", &WorkspaceError{Kind: KindCreate, ResourceID: rel, Message: "cannot create folder", Err: err}
	}
	return rel, nil
}

func (b *FSBackend) RenameFolder(ctx context.Context, path, folderRel, name string) (string, error) {
	oldAbs, err := b.resolve(path, folderRel)
	if err != nil {
		return "", &WorkspaceError{Kind: KindRename, ResourceID: folderRel, Message: "invalid folder path", Err: err}
	}
	newRel := filepath.Join(filepath.Dir(folderRel), name)
	newAbs, err := b.resolve(path, newRel)
	if err != nil {
		return "", &WorkspaceError{Kind: KindRename, ResourceID: folderRel, Message: "invalid target name", Err: err}
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		return "", &WorkspaceError{Kind: KindRename, ResourceID: folderRel, Message: "cannot rename folder", Err: err}
	}
	return newRel, nil
}

func (b *FSBackend) DeleteFolder(ctx context.Context, path, folderRel string) error {
	if folderRel == "" || folderRel == "." {
		return &WorkspaceError{Kind: KindDelete, ResourceID: folderRel, Message: "refusing to delete workspace root"}
	}
	abs, err := b.resolve(path, folderRel)
	if err != nil {
		return &WorkspaceError{Kind: KindDelete, ResourceID: folderRel, Message: "invalid folder path", Err: err}
	}
	if _, err := os.Stat(abs); err != nil {
		return &WorkspaceError{Kind: KindDelete, ResourceID: folderRel, Message: "folder does not exist", Err: err}
	}
	if err := os.RemoveAll(abs); err != nil {
		return &WorkspaceError{Kind: KindDelete, ResourceID: folderRel, Message: "cannot delete folder", Err: err}
	}
	return nil
}

func (b *FSBackend) MoveItems(ctx context.Context, path string, rels []string, newParentRel string) error {
	targetAbs, err := b.resolve(path, newParentRel)
	if err != nil {
		return &WorkspaceError{Kind: KindRename, ResourceID: newParentRel, Message: "invalid target folder", Err: err}
	}
	if info, err := os.Stat(targetAbs); err != nil || !info.IsDir() {
		return &WorkspaceError{Kind: KindRename, ResourceID: newParentRel, Message: "target folder does not exist"}
	}
	for _, rel := range rels {
		srcAbs, err := b.resolve(path, rel)
		if err != nil {
			return &WorkspaceError{Kind: KindRename, ResourceID: rel, Message: "invalid item path", Err: err}
		}
		// Moving a folder into its own subtree would orphan it.
		if strings.HasPrefix(targetAbs+string(filepath.Separator), srcAbs+string(filepath.Separator)) {
			return &WorkspaceError{Kind: KindRename, ResourceID: rel, Message: "cannot move a folder into itself"}
		}
		dst := filepath.Join(targetAbs, filepath.Base(rel))
		if err := os.Rename(srcAbs, dst); err != nil {
			return &WorkspaceError{Kind: KindRename, ResourceID: rel, Message: "cannot move item", Err: err}
		}
	}
	return nil
}

func (b *FSBackend) CreateRunbook(ctx context.Context, path string, rb *models.Runbook, folderRel string) error {
	abs, err := b.resolve(path, filepath.Join(folderRel, rb.ID+runbookExt))
	if err != nil {
		return &WorkspaceError{Kind: KindCreate, ResourceID: rb.ID, Message: "invalid runbook path", Err: err}
	}
	if _, err := os.Stat(abs); err == nil {
		return &WorkspaceError{Kind: KindCreate, ResourceID: rb.ID, Message: "runbook already exists"}
	}
	return b.writeRunbook(abs, rb, KindCreate)
}

func (b *FSBackend) SaveRunbook(ctx context.Context, path string, rb *models.Runbook) error {
	abs, err := b.findRunbook(path, rb.ID)
	if err != nil {
		return err
	}
	return b.writeRunbook(abs, rb, KindCreate)
}

func (b *FSBackend) DeleteRunbook(ctx context.Context, path, runbookID string) error {
	abs, err := b.findRunbook(path, runbookID)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return &WorkspaceError{Kind: KindDelete, ResourceID: runbookID, Message: "cannot delete runbook", Err: err}
	}
	return nil
}

func (b *FSBackend) GetRunbook(ctx context.Context, path, runbookID string) (*models.Runbook, error) {
	abs, err := b.findRunbook(path, runbookID)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &WorkspaceError{Kind: KindRead, ResourceID: runbookID, Message: "cannot read runbook", Err: err}
	}
	var doc runbookDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &WorkspaceError{Kind: KindRead, ResourceID: runbookID, Message: "runbook document is corrupt", Err: err}
	}
	return &models.Runbook{
		ID:      doc.ID,
		Name:    doc.Name,
		Content: doc.Content,
		Source:  models.SourceLocal,
	}, nil
}

func (b *FSBackend) ReadDir(ctx context.Context, path string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(path, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." || rel == metaDir || strings.HasPrefix(rel, metaDir+string(filepath.Separator)) {
			if d.IsDir() && rel == metaDir {
				return fs.SkipDir
			}
			return nil
		}
		e := Entry{RelPath: rel, IsDir: d.IsDir()}
		if !d.IsDir() {
			if !strings.HasSuffix(p, runbookExt) {
				return nil
			}
			e.RunbookID = strings.TrimSuffix(filepath.Base(p), runbookExt)
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, &WorkspaceError{Kind: KindRead, ResourceID: path, Message: "cannot read workspace", Err: err}
	}
	return entries, nil
}

func (b *FSBackend) writeMeta(path, id string, meta workspaceMeta) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &WorkspaceError{Kind: KindCreate, ResourceID: id, Message: "cannot encode workspace metadata", Err: err}
	}
	if err := os.WriteFile(filepath.Join(path, metaDir, metaFile), raw, documentMode); err != nil {
		return &WorkspaceError{Kind: KindCreate, ResourceID: id, Message: "cannot write workspace metadata", Err: err}
	}
	return nil
}

func (b *FSBackend) readMeta(path string) (*workspaceMeta, error) {
	raw, err := os.ReadFile(filepath.Join(path, metaDir, metaFile))
	if err != nil {
		return nil, &WorkspaceError{Kind: KindRead, ResourceID: path, Message: "not an opsbook workspace", Err: err}
	}
	var meta workspaceMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, &WorkspaceError{Kind: KindRead, ResourceID: path, Message: "workspace metadata is corrupt", Err: err}
	}
	return &meta, nil
}

func (b *FSBackend) writeRunbook(abs string, rb *models.Runbook, kind ErrorKind) error {
	content := rb.Content
	if len(content) == 0 {
		content = []byte(`{}`)
	}
	raw, err := json.MarshalIndent(runbookDoc{ID: rb.ID, Name: rb.Name, Content: content}, "", "  ")
	if err != nil {
		return &WorkspaceError{Kind: kind, ResourceID: rb.ID, Message: "cannot encode runbook", Err: err}
	}
	if err := os.WriteFile(abs, raw, documentMode); err != nil {
		return &WorkspaceError{Kind: kind, ResourceID: rb.ID, Message: "cannot write runbook", Err: err}
	}
	return nil
}

// findRunbook walks the workspace looking for "<id>.opsbook.json".
func (b *FSBackend) findRunbook(path, runbookID string) (string, error) {
	var found string
	target := runbookID + runbookExt
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if filepath.Base(p) == metaDir {
				return fs.SkipDir
			}
			return nil
		}
		if filepath.Base(p) == target {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", &WorkspaceError{Kind: KindRead, ResourceID: runbookID, Message: "cannot scan workspace", Err: err}
	}
	if found == "" {
		return "", &WorkspaceError{Kind: KindRead, ResourceID: runbookID, Message: "runbook not found", Err: os.ErrNotExist}
	}
	return found, nil
}

// resolve joins rel onto root and rejects escapes outside the workspace.
func (b *FSBackend) resolve(root, rel string) (string, error) {
	abs := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return "", errors.New("path escapes workspace root")
	}
	return abs, nil
}
