// Package inbox turns text files dropped into a directory into untitled
// working copies.
package inbox

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/scratch/internal/manager"
	"github.com/starford/scratch/internal/storage"
	"github.com/starford/scratch/internal/workingcopy"
)

// settleDelay is how long a file must stay quiet before it is imported.
const settleDelay = 200 * time.Millisecond

var exts = []string{".md", ".txt"}

// Creator creates untitled copies.
type Creator interface {
	Create(ctx context.Context, opts manager.CreateOptions) (*workingcopy.Untitled, error)
}

// Callback is called after a file has been imported as the copy addressed
// by key.
type Callback func(file, key string)

// Watch imports every text file already in dir and then watches dir until ctx
// is cancelled. Imported files are removed from dir.
func Watch(ctx context.Context, dir string, c Creator, logger *slog.Logger, cb Callback) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("inbox: create dir: %w", err)
	}
	files, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	defer w.Close()

	if err := addDirsRecursive(w, dir); err != nil {
		return fmt.Errorf("inbox: %w", err)
	}

	in := &importer{files: files, creator: c, logger: logger, cb: cb}
	in.drain(ctx)

	logger.Info("inbox: started", slog.String("dir", dir))

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for rel := range pending {
				in.importFile(ctx, rel)
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("inbox: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					in.drain(ctx)
					continue
				}
			}

			rel, relErr := filepath.Rel(dir, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !importable(rel) {
				continue
			}
			pending[rel] = struct{}{}
			scheduleSettle()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

type importer struct {
	files   storage.Provider
	creator Creator
	logger  *slog.Logger
	cb      Callback
}

// drain imports every importable file currently in the inbox.
func (in *importer) drain(ctx context.Context) {
	entries, err := in.files.List("", "")
	if err != nil {
		in.logger.Warn("inbox: list failed", slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if importable(e.Path) {
			in.importFile(ctx, e.Path)
		}
	}
}

// importFile opens rel as a new untitled copy and removes it. Empty files are
// left for a later write.
func (in *importer) importFile(ctx context.Context, rel string) {
	data, err := in.files.Read(rel)
	if err != nil {
		in.logger.Debug("inbox: read failed", slog.String("file", rel), slog.String("error", err.Error()))
		return
	}
	if len(data) == 0 {
		return
	}

	wc, err := in.creator.Create(ctx, manager.CreateOptions{
		InitialValue: bytes.NewReader(data),
		Resolve:      true,
	})
	if err != nil {
		in.logger.Warn("inbox: import failed", slog.String("file", rel), slog.String("error", err.Error()))
		return
	}

	if err := in.files.Delete(rel); err != nil {
		in.logger.Warn("inbox: remove failed", slog.String("file", rel), slog.String("error", err.Error()))
	}

	key := manager.Key(wc)
	in.logger.Info("inbox: imported", slog.String("file", rel), slog.String("key", key))
	if in.cb != nil {
		in.cb(rel, key)
	}
}

// importable reports whether rel is a visible text file.
func importable(rel string) bool {
	if strings.HasPrefix(path.Base(rel), ".") {
		return false
	}
	ext := strings.ToLower(path.Ext(rel))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
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
