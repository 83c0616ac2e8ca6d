package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/xflkit/internal/storage"
)

// watcherTestEnv sets up a package dir with a LIBRARY folder, storage, and
// DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	pkgDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(pkgDir, "LIBRARY"), 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(pkgDir)
	if err != nil {
		t.Fatal(err)
	}
	return pkgDir, store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func descriptor(name string) []byte {
	return []byte(`<DOMSymbolItem name="` + name + `"/>`)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	pkgDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, pkgDir, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(pkgDir, "LIBRARY", "New.xml"), descriptor("New"), 0o644)
	// Media files are not cataloged.
	_ = os.WriteFile(filepath.Join(pkgDir, "LIBRARY", "face.png"), []byte("png"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("LIBRARY/New.xml")
		return cs != ""
	}, "new descriptor not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:LIBRARY/New.xml" {
				return true
			}
		}
		return false
	}, "expected created:LIBRARY/New.xml callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	pkgDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, pkgDir, quietLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(pkgDir, "LIBRARY", "Props")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "Deep.xml"), descriptor("Props/Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("LIBRARY/Props/Deep.xml")
		return cs != ""
	}, "descriptor in new folder not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	pkgDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(pkgDir, "LIBRARY", "Del.xml"), descriptor("Del"), 0o644)
	_, _ = Sync(db, store, logger)

	cs, _ := db.GetChecksum("LIBRARY/Del.xml")
	if cs == "" {
		t.Fatal("precondition: descriptor should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, pkgDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(pkgDir, "LIBRARY", "Del.xml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("LIBRARY/Del.xml")
		return cs == ""
	}, "deleted descriptor still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	pkgDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(pkgDir, "LIBRARY", "Old.xml"), descriptor("Old"), 0o644)
	_, _ = Sync(db, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, pkgDir, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(pkgDir, "LIBRARY", "Old.xml"), filepath.Join(pkgDir, "LIBRARY", "Renamed.xml"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("LIBRARY/Old.xml")
		newCS, _ := db.GetChecksum("LIBRARY/Renamed.xml")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestWatcher_IdenticalRewriteNotReported(t *testing.T) {
	pkgDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	path := filepath.Join(pkgDir, "LIBRARY", "Same.xml")
	_ = os.WriteFile(path, []byte("<DOMSymbolItem name=\"Same\"/>\n"), 0o644)
	_, _ = Sync(db, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, store, pkgDir, logger, func(kind, p string) {
		mu.Lock()
		events = append(events, kind+":"+p)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	// CRLF endings do not change the descriptor checksum.
	_ = os.WriteFile(path, []byte("<DOMSymbolItem name=\"Same\"/>\r\n"), 0o644)
	_ = os.WriteFile(filepath.Join(pkgDir, "LIBRARY", "Other.xml"), descriptor("Other"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("LIBRARY/Other.xml")
		return cs != ""
	}, "other descriptor not indexed")

	mu.Lock()
	defer mu.Unlock()
	for _, e := range events {
		if e == "updated:LIBRARY/Same.xml" {
			t.Errorf("identical rewrite reported: %v", events)
		}
	}
}
