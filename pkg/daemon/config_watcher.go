package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/canopy/logging"
	"github.com/grovetools/canopy/pkg/paths"
)

// ConfigWatcher watches the canopy config directory and reports changes
// to canopy.yml (or .yaml/.toml variants) through a callback, debounced
// against rapid successive writes.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	debounceMs int
	lastChange time.Time
	mu         sync.Mutex
	logger     *logrus.Entry
	onReload   func(file string)
}

// NewConfigWatcher creates a ConfigWatcher over the canopy config
// directory. The onReload callback is called when a config file changes
// (for broadcasting to clients).
func NewConfigWatcher(debounceMs int, onReload func(string)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(paths.ConfigDir()); err != nil {
		watcher.Close()
		return nil, err
	}

	if debounceMs <= 0 {
		debounceMs = 100
	}

	return &ConfigWatcher{
		watcher:    watcher,
		debounceMs: debounceMs,
		logger:     logging.NewLogger("config-watcher"),
		onReload:   onReload,
	}, nil
}

// Start begins watching for config changes. It blocks until the context
// is cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 && isConfigFile(event.Name) {
				w.handleChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

func isConfigFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yml", ".yaml", ".toml":
		return strings.HasPrefix(filepath.Base(name), "canopy")
	}
	return false
}

// handleChange processes a config file change with debouncing.
func (w *ConfigWatcher) handleChange(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := time.Since(w.lastChange)
	if elapsed < time.Duration(w.debounceMs)*time.Millisecond {
		w.logger.Debugf("Debounced: %s (only %v since last change)", filepath.Base(file), elapsed)
		return
	}
	w.lastChange = time.Now()

	w.logger.Infof("Config changed: %s", filepath.Base(file))

	if w.onReload != nil {
		w.onReload(filepath.Base(file))
	}
}

// Close stops the watcher and releases resources.
func (w *ConfigWatcher) Close() error {
	return w.watcher.Close()
}
