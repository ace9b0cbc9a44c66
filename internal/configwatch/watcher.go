// Package configwatch reloads the exclusion filters when the config file
// changes on disk.
package configwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/threadmirror/internal/app"
	"github.com/bft-labs/threadmirror/internal/cliconfig"
	"github.com/bft-labs/threadmirror/internal/ports"
)

// DefaultDebounceDelay is how long to wait after the last change before reloading.
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher monitors the config file via fsnotify and swaps the [filters]
// table into a FilterSet. Only filters are hot-reloaded; every other
// setting needs a restart.
type Watcher struct {
	path    string
	delay   time.Duration
	filters *app.FilterSet
	logger  ports.Logger

	mu       sync.Mutex
	debounce *time.Timer
	reloads  int
}

// New creates a watcher for the config file at path.
func New(path string, filters *app.FilterSet, logger ports.Logger, delay time.Duration) *Watcher {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Watcher{path: path, delay: delay, filters: filters, logger: logger}
}

// Run watches the config file's directory until ctx is canceled.
// The directory is watched rather than the file so editors that replace
// the file on save are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching config file", ports.String("path", w.path))

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.stopDebounce()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", ports.Err(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, func() {
		if err := w.Reload(); err != nil {
			w.logger.Warn("keeping previous filters", ports.Err(err))
		}
	})
}

func (w *Watcher) stopDebounce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

// Reload reads the config file and replaces the active filters.
// On any error the active filters are left unchanged.
func (w *Watcher) Reload() error {
	fc, err := cliconfig.LoadFileConfig(w.path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	f, err := app.NewFilters(fc.Filters.ExcludeTitles, fc.Filters.ExcludePatterns)
	if err != nil {
		return err
	}
	w.filters.Store(f)

	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()

	w.logger.Info("reloaded filters",
		ports.Int("titles", len(fc.Filters.ExcludeTitles)),
		ports.Int("patterns", len(fc.Filters.ExcludePatterns)))
	return nil
}

// Reloads returns how many reloads succeeded.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}
