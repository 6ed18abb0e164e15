package kernel

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher wires an fsnotify watch over the config directory to trigger a
// (debounced) Reload on file changes, mirroring the hot-reload pattern of
// a file-watching prompt manager: watch failures are logged and leave hot
// reload disabled rather than failing startup. The watcher is the only
// trigger of Reload in this program; without it the config loaded at
// startup stays in effect.
type Watcher struct {
	handle  *Handle
	watcher *fsnotify.Watcher
	stop    chan struct{}
}

// StartWatch creates an fsnotify watch over <configDir>, <configDir>/models,
// and <configDir>/scripts, reloading on Write/Create/Remove/Rename events.
// A failure to create the watcher disables hot reload and returns a nil
// Watcher with no error — config-dir watching is optional plumbing.
func StartWatch(h *Handle, configDir string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("failed to create config watcher, hot reload disabled", zap.Error(err))
		return nil, nil
	}

	dirs := []string{configDir, filepath.Join(configDir, "models"), filepath.Join(configDir, "scripts")}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			logger.Warn("failed to watch config directory, hot reload disabled",
				zap.String("dir", d), zap.Error(err))
			fw.Close()
			return nil, nil
		}
	}

	w := &Watcher{handle: h, watcher: fw, stop: make(chan struct{})}
	go w.run(logger)
	logger.Info("config hot reload enabled", zap.String("dir", configDir))
	return w, nil
}

func (w *Watcher) run(logger *zap.Logger) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Info("config file changed, reloading", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			if outcome, err := w.handle.Reload(); err != nil {
				logger.Error("config reload failed", zap.Error(err))
			} else if outcome.Reloaded {
				logger.Info("config reloaded", zap.Int("models", len(outcome.Snapshot.Models)))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", zap.Error(err))
		case <-w.stop:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	close(w.stop)
	w.watcher.Close()
}
