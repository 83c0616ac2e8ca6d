package index

import (
	"log/slog"
	"strings"
	"time"

	"github.com/starford/xflkit/internal/checksum"
	"github.com/starford/xflkit/internal/library"
	"github.com/starford/xflkit/internal/parser"
	"github.com/starford/xflkit/internal/storage"
)

// ItemName maps a descriptor path such as LIBRARY/Props/Ball.xml to the
// qualified item name Props/Ball. ok is false for any other path.
func ItemName(path string) (name string, ok bool) {
	rest, ok := strings.CutPrefix(path, library.Root+"/")
	if !ok || !strings.HasSuffix(rest, ".xml") {
		return "", false
	}
	return strings.TrimSuffix(rest, ".xml"), true
}

// SyncStats counts what one Sync pass did.
type SyncStats struct {
	Indexed   int
	Unchanged int
	Removed   int
	Failed    int
}

// Sync reconciles the index with the descriptors under LIBRARY/. A
// descriptor whose checksum matches its row is left alone; rows without a
// descriptor on disk are dropped. Per-file failures are logged and counted,
// not returned.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	return syncLibrary(db, store, logger, nil)
}

func syncLibrary(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) (SyncStats, error) {
	var st SyncStats
	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	metas, err := store.List(library.Root, ".xml")
	if err != nil {
		return st, err
	}
	indexed, err := db.AllChecksums()
	if err != nil {
		return st, err
	}

	onDisk := make(map[string]bool, len(metas))
	for _, m := range metas {
		onDisk[m.Path] = true
		if indexed[m.Path] == m.Checksum {
			st.Unchanged++
			continue
		}

		data, err := store.Read(m.Path)
		if err == nil {
			err = indexFile(db, m.Path, data)
		}
		if err != nil {
			st.Failed++
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		st.Indexed++
		if indexed[m.Path] == "" {
			notify("created", m.Path)
		} else {
			notify("updated", m.Path)
		}
	}

	for p := range indexed {
		if onDisk[p] {
			continue
		}
		if err := db.DeleteItem(p); err != nil {
			st.Failed++
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		st.Removed++
		notify("deleted", p)
	}

	logger.Debug("sync: done",
		slog.Int("indexed", st.Indexed),
		slog.Int("unchanged", st.Unchanged),
		slog.Int("removed", st.Removed),
		slog.Int("failed", st.Failed))
	return st, nil
}

// indexFile parses a symbol descriptor and upserts it into the DB.
func indexFile(db *DB, path string, data []byte) error {
	name, ok := ItemName(path)
	if !ok {
		return nil
	}
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	row := ItemRow{
		Path:       path,
		Name:       name,
		ItemID:     res.ItemID,
		SymbolType: res.SymbolType,
		Checksum:   checksum.Descriptor(data),
		UpdatedAt:  time.Now().UTC(),
	}
	body := strings.TrimSpace(name + " " + res.Text)
	return db.UpsertItem(row, body, res.References)
}
