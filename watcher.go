// includenav/watcher.go
// Contains the fsnotify watcher that drops cached alias tables when a project's
// build configuration changes on disk.
package includenav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// aliasConfigPatterns match the base names of files that feed the alias table.
var aliasConfigPatterns = []string{
	"{tsconfig,jsconfig}.json",
	"{vite,webpack}.config.{ts,js,cjs,mjs}",
}

// isAliasConfigFile reports whether the base name of path is an alias source.
func isAliasConfigFile(path string) bool {
	name := filepath.Base(path)
	for _, pattern := range aliasConfigPatterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// ConfigWatcher watches project roots and reports which root's build config changed.
type ConfigWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(root string)
	logger   *slog.Logger

	mu    sync.Mutex
	roots map[string]struct{}
}

// NewConfigWatcher creates a watcher; onChange runs on the Run goroutine.
func NewConfigWatcher(onChange func(root string), logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &ConfigWatcher{
		watcher:  w,
		onChange: onChange,
		logger:   logger.With("component", "ConfigWatcher"),
		roots:    make(map[string]struct{}),
	}, nil
}

// Add starts watching root. Config files live at the root, so the watch is not recursive.
func (w *ConfigWatcher) Add(root string) error {
	root = filepath.Clean(root)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.roots[root]; ok {
		return nil
	}
	if err := w.watcher.Add(root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}
	w.roots[root] = struct{}{}
	w.logger.Debug("Watching root", "root", root)
	return nil
}

// Remove stops watching root.
func (w *ConfigWatcher) Remove(root string) error {
	root = filepath.Clean(root)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.roots[root]; !ok {
		return nil
	}
	delete(w.roots, root)
	if err := w.watcher.Remove(root); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return fmt.Errorf("unwatching %s: %w", root, err)
	}
	return nil
}

// Run dispatches events until ctx is done or the watcher is closed.
func (w *ConfigWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !isAliasConfigFile(event.Name) {
		return
	}
	root := filepath.Dir(event.Name)
	w.mu.Lock()
	_, watched := w.roots[root]
	w.mu.Unlock()
	if !watched {
		return
	}
	w.logger.Info("Build config changed, invalidating aliases", "root", root, "file", filepath.Base(event.Name), "op", event.Op.String())
	w.onChange(root)
}

// Close stops the underlying watcher; Run returns afterwards.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
