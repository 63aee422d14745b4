package tts

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a configuration file whenever it is written and
// reports valid changes to a callback. Invalid files are logged and ignored.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	onChange func(old, new Config)
	load     func(path string) (Config, error)

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	current Config

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// WatcherOption configures a ConfigWatcher.
type WatcherOption func(*ConfigWatcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *ConfigWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLoader replaces LoadConfigFile.
func WithLoader(load func(path string) (Config, error)) WatcherOption {
	return func(w *ConfigWatcher) {
		if load != nil {
			w.load = load
		}
	}
}

// NewConfigWatcher loads path and starts watching its directory. Editors
// often replace files instead of writing them, so the directory is watched
// and events are filtered by name.
func NewConfigWatcher(path string, onChange func(old, new Config), opts ...WatcherOption) (*ConfigWatcher, error) {
	w := &ConfigWatcher{
		path:     filepath.Clean(path),
		debounce: 200 * time.Millisecond,
		onChange: onChange,
		load:     LoadConfigFile,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, err := w.load(w.path)
	if err != nil {
		return nil, fmt.Errorf("config watcher initial load: %w", err)
	}
	w.current = cfg

	w.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		_ = w.watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	log.Debug("fsnotify watching dir", "dir", dir)

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid configuration.
func (w *ConfigWatcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops watching. It is safe to call more than once.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
		w.wg.Wait()
	})
}

func (w *ConfigWatcher) loop() {
	defer w.wg.Done()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Debug("fsnotify error", "file", w.path, "error", err)
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := w.load(w.path)
	if err != nil {
		log.Warn("config reload failed, keeping previous configuration", "file", w.path, "error", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	log.Info("configuration reloaded", "file", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}
