package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"melisma/internal/logging"
	"melisma/internal/models"
	"melisma/internal/services"
)

// Watcher observes registered folder trees and triggers debounced rescans
// when files change. Bursts of events (a copy of an album, a tag editor
// rewriting files) collapse into one rescan per folder.
type Watcher struct {
	engine   *Engine
	repo     *services.Repository
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger

	mu      sync.Mutex
	pending map[int64]*time.Timer
	roots   []models.Folder
}

// NewWatcher creates a filesystem watcher driving the given engine.
func NewWatcher(engine *Engine, debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	return &Watcher{
		engine:   engine,
		repo:     engine.repo,
		watcher:  fsWatcher,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[int64]*time.Timer),
	}, nil
}

// rootRefreshInterval is how often the watcher re-lists registered folders
// to pick up roots added while it runs.
const rootRefreshInterval = time.Minute

// Start registers every library folder tree and begins dispatching events.
// It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	folders, err := w.repo.ListFolders()
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}
	w.setRoots(folders)

	refresh := time.NewTicker(rootRefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return w.watcher.Close()
		case <-refresh.C:
			w.syncRoots()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Zerolog().Warn().Err(err).Msg("Filesystem watcher error")
			}
		}
	}
}

// syncRoots reconciles the watched roots with the folder table. Newly
// registered folders gain watches; removed registrations are forgotten (their
// OS watches go away with the directories).
func (w *Watcher) syncRoots() {
	folders, err := w.repo.ListFolders()
	if err != nil {
		if w.logger != nil {
			w.logger.Zerolog().Warn().Err(err).Msg("Failed to refresh watched folders")
		}
		return
	}
	w.setRoots(folders)
}

// setRoots replaces the root list and watches any root not yet covered.
func (w *Watcher) setRoots(folders []models.Folder) {
	known := make(map[int64]struct{}, len(w.roots))
	for _, folder := range w.roots {
		known[folder.ID] = struct{}{}
	}

	for _, folder := range folders {
		if _, watched := known[folder.ID]; watched {
			continue
		}
		if err := w.watchTree(folder.Path); err != nil && w.logger != nil {
			w.logger.WithField("folder_path", folder.Path).Warn().Err(err).Msg("Failed to watch folder tree")
		}
	}

	w.mu.Lock()
	w.roots = folders
	w.mu.Unlock()
}

// watchTree adds the root and all its subdirectories. fsnotify watches are
// not recursive.
func (w *Watcher) watchTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if addErr := w.watcher.Add(path); addErr != nil && w.logger != nil {
				w.logger.WithField("path", path).Warn().Err(addErr).Msg("Failed to add watch")
			}
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories need their own watches before files land in them.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.watchTree(event.Name)
		}
	}

	folderID, ok := w.folderFor(event.Name)
	if !ok {
		return
	}
	w.scheduleRescan(ctx, folderID)
}

func (w *Watcher) folderFor(path string) (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, folder := range w.roots {
		if path == folder.Path || strings.HasPrefix(path, folder.Path+string(filepath.Separator)) {
			return folder.ID, true
		}
	}
	return 0, false
}

// scheduleRescan arms (or re-arms) the folder's debounce timer.
func (w *Watcher) scheduleRescan(ctx context.Context, folderID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.pending[folderID]; exists {
		timer.Reset(w.debounce)
		return
	}

	w.pending[folderID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, folderID)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := w.engine.RescanFolder(ctx, folderID); err != nil && w.logger != nil {
			w.logger.WithField("folder_id", folderID).Warn().Err(err).Msg("Watcher-triggered rescan failed")
		}
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, timer := range w.pending {
		timer.Stop()
		delete(w.pending, id)
	}
}
