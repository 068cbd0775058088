package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher reloads the YAML config file when it changes and hands the new
// configuration to registered callbacks. Invalid reloads are logged and
// dropped; the previous configuration stays in effect.
type Watcher struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
	logger    *zap.Logger
	watcher   *fsnotify.Watcher
	load      func() (*Config, error)
	debounce  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatcher starts watching initial.File. Without a file there is
// nothing to watch and the returned watcher is inert.
func NewWatcher(initial *Config, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		config:   initial,
		logger:   logger,
		load:     LoadConfig,
		debounce: reloadDebounce,
		stopCh:   make(chan struct{}),
	}
	if initial.File == "" {
		return w, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors replace files on save, so the directory is watched.
	if err := fsWatcher.Add(filepath.Dir(initial.File)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", initial.File, err)
	}
	w.watcher = fsWatcher
	go w.watchLoop(filepath.Clean(initial.File))

	logger.Info("Configuration hot reloading enabled", zap.String("file", initial.File))
	return w, nil
}

// Current returns the active configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnChange registers a callback run after each successful reload
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Stop ends watching
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Watcher) watchLoop(file string) {
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != file || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	next, err := w.load()
	if err != nil {
		w.logger.Error("Invalid configuration after reload", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.config
	w.config = next
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	if prev.AutosaveDelay != next.AutosaveDelay {
		w.logger.Info("Autosave delay changed",
			zap.Duration("from", prev.AutosaveDelay),
			zap.Duration("to", next.AutosaveDelay),
		)
	}
	for _, fn := range callbacks {
		fn(next)
	}
	w.logger.Info("Configuration reloaded", zap.Int("callbacks_notified", len(callbacks)))
}
