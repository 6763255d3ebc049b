// Package watch publishes filesystem changes made under the workspace root,
// including edits made outside the server.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/workspaces-mcp/internal/events"
	"github.com/starford/workspaces-mcp/internal/service"
)

// DefaultDebounce is how long changes are collected before publishing.
const DefaultDebounce = 200 * time.Millisecond

// tempPrefix marks the storage layer's in-flight temp files.
const tempPrefix = ".wsmcp-tmp-"

// Watch watches root recursively until ctx is cancelled. Changes are
// grouped by top-level entry (a workspace or SHARED_INSTRUCTIONS) and, after
// debounce of quiet, published as one fs.changed event per entry.
//
// New directories created at runtime are added to the watch list.
func Watch(ctx context.Context, root string, pub service.Publisher, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			flush(ctx, pub, pending)
			pending = make(map[string]map[string]struct{})

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), tempPrefix) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || rel == "." || strings.HasPrefix(rel, "..") {
				continue
			}
			rel = filepath.ToSlash(rel)
			subject, _, _ := strings.Cut(rel, "/")
			if pending[subject] == nil {
				pending[subject] = make(map[string]struct{})
			}
			pending[subject][rel] = struct{}{}
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
			scheduleFlush()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func flush(ctx context.Context, pub service.Publisher, pending map[string]map[string]struct{}) {
	subjects := make([]string, 0, len(pending))
	for s := range pending {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		paths := make([]string, 0, len(pending[subject]))
		for p := range pending[subject] {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		pub.Publish(ctx, events.New(events.FSChanged, subject, map[string]any{"paths": paths}))
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
