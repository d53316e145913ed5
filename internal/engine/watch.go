package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watch processes model files under dir whenever they are written, calling
// fn with the batch of changed files. It blocks until ctx is cancelled.
func (e *Engine) Watch(ctx context.Context, dir string, opts Options, fn func(*BatchResult)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	e.logger.Info("watching for changes", slog.String("dir", dir))

	var (
		mu      sync.Mutex
		pending = map[string]bool{}
		timer   *time.Timer
	)
	flush := func() {
		mu.Lock()
		paths := make([]string, 0, len(pending))
		for p := range pending {
			paths = append(paths, p)
		}
		pending = map[string]bool{}
		mu.Unlock()
		if len(paths) == 0 {
			return
		}
		sort.Strings(paths)

		batch, err := e.ProcessFiles(ctx, paths, opts.Solve)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Error("watch batch failed", slog.String("error", err.Error()))
			}
			return
		}
		fn(batch)
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err == nil {
						e.logger.Debug("watching new directory", slog.String("dir", event.Name))
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsBatchFile(event.Name) {
				continue
			}
			if opts.Pattern != "" {
				if ok, _ := filepath.Match(opts.Pattern, filepath.Base(event.Name)); !ok {
					continue
				}
			}

			mu.Lock()
			pending[event.Name] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(DefaultDebounce, flush)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
