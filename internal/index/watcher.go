package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/xflkit/internal/apperr"
	"github.com/starford/xflkit/internal/checksum"
	"github.com/starford/xflkit/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted"; path is the slash-separated
// descriptor path relative to the package root.
type EventCallback func(kind string, path string)

// settle is how long the package must stay quiet before queued changes are
// applied. Editors write descriptors in several steps.
const settle = 150 * time.Millisecond

// Watch keeps the index in step with descriptor edits made under pkgRoot
// until ctx is cancelled, calling cb (if non-nil) after each index change.
//
// Changed paths are queued and applied together once the folder settles.
// A descriptor rewritten with identical content is not reported. Directory
// creation and renames cannot be mapped to single paths, so they trigger a
// full Sync of the library instead.
func Watch(ctx context.Context, db *DB, store storage.Provider, pkgRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, pkgRoot); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", pkgRoot))

	q := &changeQueue{db: db, store: store, logger: logger, cb: cb, pending: make(map[string]struct{})}
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-timer.C:
			q.flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".xflkit-tmp-") {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add dir failed", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					q.rescan = true
					timer.Reset(settle)
					continue
				}
			}

			rel, relErr := filepath.Rel(pkgRoot, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if _, ok := ItemName(rel); !ok {
				continue
			}
			q.pending[rel] = struct{}{}
			// fsnotify reports a rename on the old path only.
			if ev.Has(fsnotify.Rename) {
				q.rescan = true
			}
			timer.Reset(settle)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// changeQueue collects descriptor paths between flushes.
type changeQueue struct {
	db      *DB
	store   storage.Provider
	logger  *slog.Logger
	cb      EventCallback
	pending map[string]struct{}
	rescan  bool
}

func (q *changeQueue) notify(kind, rel string) {
	q.logger.Debug("watcher: "+kind, slog.String("path", rel))
	if q.cb != nil {
		q.cb(kind, rel)
	}
}

func (q *changeQueue) flush() {
	paths := q.pending
	rescan := q.rescan
	q.pending = make(map[string]struct{})
	q.rescan = false

	if rescan {
		if _, err := syncLibrary(q.db, q.store, q.logger, q.notify); err != nil {
			q.logger.Warn("watcher: rescan failed", slog.String("error", err.Error()))
		}
		return
	}
	for rel := range paths {
		q.apply(rel)
	}
}

// apply brings one descriptor's row in line with the file on disk.
func (q *changeQueue) apply(rel string) {
	old, err := q.db.GetChecksum(rel)
	if err != nil {
		q.logger.Warn("watcher: lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	data, err := q.store.Read(rel)
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		if old == "" {
			return
		}
		if err := q.db.DeleteItem(rel); err != nil {
			q.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		q.notify("deleted", rel)
		return
	}
	if err != nil {
		q.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	if old == checksum.Descriptor(data) {
		return
	}
	if err := indexFile(q.db, rel, data); err != nil {
		q.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if old == "" {
		q.notify("created", rel)
	} else {
		q.notify("updated", rel)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
