package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mediafold/internal/checksum"
	"github.com/starford/mediafold/internal/storage"
)

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

// DefaultSettle is how long the watcher waits after a rename before
// reconciling the index with the disk.
const DefaultSettle = 200 * time.Millisecond

// Watcher keeps the index in step with edits made to the vault outside the
// service, such as a synced folder or a text editor.
type Watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
	settle time.Duration
}

// NewWatcher returns a watcher for the vault at root. cb may be nil.
func NewWatcher(db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) *Watcher {
	return &Watcher{db: db, store: store, root: root, logger: logger, cb: cb, settle: DefaultSettle}
}

func (w *Watcher) notify(kind, path string) {
	if w.cb != nil {
		w.cb(kind, path)
	}
}

// Run watches the vault until ctx is cancelled. Directories created while
// running are watched too. Renames schedule a reconciliation pass, since
// fsnotify only reports the old name.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.root))

	reconcile := time.NewTimer(w.settle)
	if !reconcile.Stop() {
		<-reconcile.C
	}
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case <-reconcile.C:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.handle(fw, ev) {
				reconcile.Reset(w.settle)
			}

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

// handle applies one event and reports whether a reconciliation is due.
func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addDirsRecursive(fw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			}
			w.indexDir(ev.Name)
			return false
		}
	}

	rel, ok := w.relDocument(ev.Name)
	if !ok {
		return false
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := ChangeUpdated
		if ev.Op&fsnotify.Create != 0 {
			kind = ChangeCreated
		}
		w.index(rel, kind)
	case ev.Op&fsnotify.Remove != 0:
		w.remove(rel)
	case ev.Op&fsnotify.Rename != 0:
		w.remove(rel)
		return true
	}
	return false
}

// relDocument maps an absolute event path to a vault-relative document path.
// Hidden files, including in-flight atomic writes, are ignored.
func (w *Watcher) relDocument(abs string) (string, bool) {
	if !strings.HasSuffix(abs, ".md") || strings.HasPrefix(filepath.Base(abs), ".") {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) index(rel, kind string) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	cs, _ := w.db.GetChecksum(rel)
	if cs == checksum.Sum(data) {
		return
	}
	if err := IndexDocument(w.db, rel, data, time.Now()); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if cs != "" {
		kind = ChangeUpdated
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.notify(kind, rel)
}

func (w *Watcher) remove(rel string) {
	if cs, _ := w.db.GetChecksum(rel); cs == "" {
		return
	}
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(ChangeDeleted, rel)
}

// reconcile drops index rows without a file and indexes files whose checksum
// differs from the index.
func (w *Watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range disk {
		if checksums[p] != cs {
			w.index(p, ChangeCreated)
		}
	}
}

func (w *Watcher) indexDir(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.relDocument(p); ok {
			w.index(rel, ChangeCreated)
		}
		return nil
	})
}

// addDirsRecursive adds root and its non-hidden subdirectories to fw.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
