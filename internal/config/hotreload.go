package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the previous and the freshly loaded configuration when
// the file on disk changes. Most settings need a restart; handlers pick out
// the fields that are safe to apply live (currently the log level) and
// ignore the rest.
type ReloadFunc func(prev, next *Config)

// Watcher reloads the config file on change and fans the result out to the
// registered reload funcs. Bursts of writes are coalesced so editors that
// save in several steps trigger a single reload.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	settle   time.Duration
	stopChan chan struct{}

	mu       sync.Mutex
	last     *Config
	handlers []ReloadFunc
}

// NewWatcher creates a watcher for the given config file. current is the
// configuration the process booted with; it is the prev of the first reload.
func NewWatcher(path string, current *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:   path,
		fsw:    fsw,
		settle: 300 * time.Millisecond,
		last:   current,
	}, nil
}

// OnReload registers a reload func.
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, fn)
}

// Start begins watching the config file.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(w.path); err != nil {
		return err
	}

	w.stopChan = make(chan struct{})
	go w.loop()

	slog.Info("config watcher started", "path", w.path)
	return nil
}

// Stop halts the watcher.
func (w *Watcher) Stop() {
	if w.stopChan != nil {
		close(w.stopChan)
	}
	w.fsw.Close()
	slog.Info("config watcher stopped")
}

func (w *Watcher) loop() {
	var settleTimer *time.Timer

	for {
		select {
		case <-w.stopChan:
			if settleTimer != nil {
				settleTimer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// Editors often replace the file instead of writing in
				// place, which drops the watch on the old inode.
				if err := w.fsw.Add(w.path); err != nil {
					slog.Warn("config watch lost", "path", w.path, "error", err)
					continue
				}
			} else if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if settleTimer != nil {
				settleTimer.Stop()
			}
			settleTimer = time.AfterFunc(w.settle, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		// Keep running on the last good config.
		slog.Error("config reload failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	prev := w.last
	w.last = next
	handlers := make([]ReloadFunc, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, fn := range handlers {
		fn(prev, next)
	}

	slog.Info("config reloaded", "path", w.path)
}
