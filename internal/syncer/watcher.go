package syncer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ExternalSync is the slice of the catalog engine the watcher drives:
// converging a single document to disk after an external change.
type ExternalSync interface {
	// SyncExternalFile upserts the catalog row for a file changed on disk.
	SyncExternalFile(ctx context.Context, userID, slug, docPath string) error
	// SyncExternalRemove drops the catalog row for a file removed from disk.
	SyncExternalRemove(ctx context.Context, userID, slug, docPath string) error
}

// Watcher observes the data root recursively and converges the catalog
// after external markdown edits. Events for paths the engine wrote
// itself are suppressed via RecentWrites; bursts of events on one path
// are coalesced with a per-path debounce timer.
type Watcher struct {
	dataRoot string
	engine   ExternalSync
	recent   *RecentWrites
	debounce time.Duration
	log      *zap.Logger

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer

	wg   sync.WaitGroup
	done chan struct{}
}

// NewWatcher constructs a watcher over dataRoot. Start must be called
// before events are delivered.
func NewWatcher(dataRoot string, engine ExternalSync, recent *RecentWrites, debounce time.Duration, log *zap.Logger) *Watcher {
	return &Watcher{
		dataRoot: dataRoot,
		engine:   engine,
		recent:   recent,
		debounce: debounce,
		log:      log,
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
}

// Start registers the existing directory tree and begins dispatching
// events until Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	if err := w.watchRecursive(w.dataRoot); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop closes the event source, cancels pending debounce timers and
// waits for the dispatch loop to drain.
func (w *Watcher) Stop() {
	close(w.done)
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.mu.Lock()
	for p, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, p)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// watchRecursive adds dir and every non-hidden subdirectory to the
// watch set. Missing directories are tolerated: files race with us.
func (w *Watcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != dir {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("filesystem watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	name := filepath.Clean(event.Name)
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || w.underHiddenDir(name) {
		return
	}

	// New directories enter the watch set immediately so files created
	// inside them are not missed.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if err := w.watchRecursive(name); err != nil {
				w.log.Error("failed to watch new directory", zap.String("dir", name), zap.Error(err))
			}
			return
		}
	}

	if !strings.HasSuffix(base, ".md") {
		return
	}
	if w.recent.Observed(name) {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	w.schedule(ctx, name)
}

// underHiddenDir reports whether any directory segment between the
// data root and the path is dotfile-prefixed.
func (w *Watcher) underHiddenDir(absPath string) bool {
	rel, err := filepath.Rel(w.dataRoot, filepath.Dir(absPath))
	if err != nil || rel == "." {
		return false
	}
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// schedule (re)arms the debounce timer for path. When the timer fires
// the path's current state on disk decides between upsert and removal,
// which also collapses create/write/remove bursts into one outcome.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	// Each armed timer holds a waitgroup slot so Stop can wait for
	// dispatches that already fired.
	w.wg.Add(1)
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case <-w.done:
			return
		default:
		}
		w.dispatch(ctx, path)
	})
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	userID, slug, docPath, ok := splitVaultPath(w.dataRoot, path)
	if !ok {
		return
	}
	// Second look after the debounce window: the engine may have written
	// this path itself while the timer was pending.
	if w.recent.Observed(path) {
		return
	}

	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		err = w.engine.SyncExternalFile(ctx, userID, slug, docPath)
	} else if os.IsNotExist(statErr) {
		err = w.engine.SyncExternalRemove(ctx, userID, slug, docPath)
	} else {
		err = statErr
	}
	if err != nil {
		w.log.Error("failed to sync external change",
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	w.log.Info("synced external change",
		zap.String("user", userID),
		zap.String("vault", slug),
		zap.String("document", docPath),
	)
}

// splitVaultPath decomposes an absolute path under dataRoot into its
// owning user, vault slug and vault-relative document path. Paths not
// at least three segments deep belong to no vault.
func splitVaultPath(dataRoot, absPath string) (userID, slug, docPath string, ok bool) {
	rel, err := filepath.Rel(dataRoot, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], strings.Join(parts[2:], "/"), true
}
