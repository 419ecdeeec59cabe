package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// reloadable is the part of the overlay that takes effect without a restart
type reloadable struct {
	LogLevel string `yaml:"logLevel"`
}

// Watcher reloads the log level when the YAML overlay changes
type Watcher struct {
	path    string
	level   zap.AtomicLevel
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu       sync.Mutex
	onChange []func(level string)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher starts watching path. The directory is watched too so that
// editors which save by rename are picked up.
func NewWatcher(path string, level zap.AtomicLevel, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:    path,
		level:   level,
		watcher: fw,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	go w.loop()
	logger.Info("Configuration watcher started", zap.String("path", path))
	return w, nil
}

// OnChange registers a callback run after each successful reload
func (w *Watcher) OnChange(fn func(level string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Stop stops watching
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				if err := w.Reload(); err != nil {
					w.logger.Warn("Config reload failed", zap.Error(err))
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

// Reload reads the overlay and applies its log level
func (w *Watcher) Reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	var r reloadable
	if err := yaml.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("failed to parse %s: %w", w.path, err)
	}
	if r.LogLevel == "" {
		return nil
	}

	old := w.level.Level()
	if err := w.level.UnmarshalText([]byte(r.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", r.LogLevel, err)
	}
	if old != w.level.Level() {
		w.logger.Info("Log level changed", zap.Stringer("from", old), zap.Stringer("to", w.level.Level()))
	}

	w.mu.Lock()
	callbacks := append([]func(string){}, w.onChange...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(r.LogLevel)
	}
	return nil
}
