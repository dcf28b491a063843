package egress

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// WatchedGuard holds a live Guard that is swapped out whenever the backing
// policy file changes on disk, so the egress policy can be edited without
// restarting the process.
type WatchedGuard struct {
	current atomic.Pointer[Guard]

	watcher *fsnotify.Watcher
	logger  *slog.Logger
	done    chan struct{}
	once    sync.Once
}

// WatchPolicyFile loads path once synchronously, then watches its
// directory (watching the directory rather than the file survives editors
// that replace the file via rename-on-save) for further changes.
func WatchPolicyFile(path string, logger *slog.Logger) (*WatchedGuard, error) {
	if logger == nil {
		logger = slog.Default()
	}

	wg := &WatchedGuard{logger: logger, done: make(chan struct{})}
	if err := wg.reload(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	wg.watcher = watcher

	go wg.watchLoop(path)
	return wg, nil
}

func (wg *WatchedGuard) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	guard, err := ParsePolicyYAML(data)
	if err != nil {
		return err
	}
	wg.current.Store(guard)
	return nil
}

func (wg *WatchedGuard) watchLoop(path string) {
	defer close(wg.done)
	target := filepath.Clean(path)
	for {
		select {
		case event, ok := <-wg.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := wg.reload(path); err != nil {
				wg.logger.Warn("egress policy reload failed, keeping previous policy", "path", path, "error", err)
			} else {
				wg.logger.Info("egress policy reloaded", "path", path)
			}
		case err, ok := <-wg.watcher.Errors:
			if !ok {
				return
			}
			wg.logger.Warn("egress policy watcher error", "error", err)
		}
	}
}

// Guard returns the currently active Guard. Safe for concurrent use.
func (wg *WatchedGuard) Guard() *Guard {
	return wg.current.Load()
}

// Close stops the watcher goroutine.
func (wg *WatchedGuard) Close() error {
	var err error
	wg.once.Do(func() {
		if wg.watcher != nil {
			err = wg.watcher.Close()
		}
	})
	if wg.done != nil {
		<-wg.done
	}
	return err
}
