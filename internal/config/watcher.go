package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eventhub/edge-gateway/internal/logging"
)

// Watcher observes the config file for on-disk changes. Route tables and
// upstream settings are frozen for the lifetime of the process, so a change
// is only reported, never applied: the operator is told a restart is needed.
type Watcher struct {
	watcher    *fsnotify.Watcher
	loader     *Loader
	configPath string
	debounce   time.Duration
	stop       chan struct{}
}

// NewWatcher creates a watcher for configPath.
func NewWatcher(configPath string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:    fsWatcher,
		loader:     NewLoader(),
		configPath: configPath,
		debounce:   500 * time.Millisecond,
		stop:       make(chan struct{}),
	}, nil
}

// Start begins watching. The containing directory is watched so editor
// rename-on-save is seen too.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return err
	}
	go w.watch()
	return nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.watcher.Close()
}

func (w *Watcher) watch() {
	var timer *time.Timer
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.report)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("config watcher error", zap.Error(err))
		}
	}
}

// report validates the changed file and tells the operator what to do next.
func (w *Watcher) report() {
	if _, err := w.loader.Load(w.configPath); err != nil {
		logging.Error("config file changed but does not validate; keeping the running config",
			zap.String("path", w.configPath), zap.Error(err))
		return
	}
	logging.Warn("config file changed; restart the gateway to apply it",
		zap.String("path", w.configPath))
}
