package backend

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/opsbookhq/opsbook/internal/logging"
)

// Watcher implements WatchWorkspace over fsnotify. fsnotify does not watch
// recursively, so directories are (re)registered whenever the tree changes.
type Watcher struct {
	backend *FSBackend
	log     logging.Logger
}

func NewWatcher(backend *FSBackend, log logging.Logger) *Watcher {
	return &Watcher{backend: backend, log: log}
}

// Watch subscribes onEvent to changes under path. An initial EventState
// snapshot is delivered before any change events.
func (w *Watcher) Watch(path, id string, onEvent func(Event)) (func(), error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &WorkspaceError{Kind: KindRead, ResourceID: id, Message: "cannot start file watcher", Err: err}
	}
	if err := addRecursive(fsw, path); err != nil {
		_ = fsw.Close()
		return nil, &WorkspaceError{Kind: KindRead, ResourceID: id, Message: "cannot watch workspace", Err: err}
	}

	done := make(chan struct{})
	go w.loop(fsw, path, id, onEvent, done)

	w.emitState(path, id, onEvent)

	return func() {
		_ = fsw.Close()
		<-done
	}, nil
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, path, id string, onEvent func(Event), done chan<- struct{}) {
	defer close(done)
	log := w.log.With("workspace", id)
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(fsw, path, id, ev, onEvent)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Warn(context.Background(), "file watcher error", "error", err)
			onEvent(Event{Type: EventError, Err: err})
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, path, id string, ev fsnotify.Event, onEvent func(Event)) {
	name := filepath.Base(ev.Name)
	if name == metaDir || strings.Contains(ev.Name, string(filepath.Separator)+metaDir+string(filepath.Separator)) {
		return
	}

	if strings.HasSuffix(ev.Name, runbookExt) {
		runbookID := strings.TrimSuffix(name, runbookExt)
		switch {
		case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
			onEvent(Event{Type: EventRunbookChanged, RunbookID: runbookID})
		case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
			onEvent(Event{Type: EventRunbookDeleted, RunbookID: runbookID})
		}
		return
	}

	// Anything else is structural: folders appeared, moved or vanished.
	// Re-register watches (new directories need one) and push a snapshot.
	if ev.Op.Has(fsnotify.Create) {
		_ = addRecursive(fsw, ev.Name)
	}
	if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		w.emitState(path, id, onEvent)
	}
}

func (w *Watcher) emitState(path, id string, onEvent func(Event)) {
	snapshot, err := w.backend.ReadDir(context.Background(), path)
	if err != nil {
		onEvent(Event{Type: EventError, Err: err})
		return
	}
	onEvent(Event{Type: EventState, Snapshot: snapshot})
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The entry may have vanished between event and walk.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if filepath.Base(p) == metaDir {
			return fs.SkipDir
		}
		return fsw.Add(p)
	})
}
