package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/watchloop/monitor/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

const debounce = 100 * time.Millisecond

// Watcher reloads the TOML config whenever the file at path changes on
// disk, calling onChange with the freshly parsed and validated File.
// Mirrors the teacher's StatusFileWatcher debounce shape, generalized
// from a directory of status files to a single config file.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*File)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher starts watching path's containing directory (fsnotify
// requires watching a directory to catch editor save-via-rename patterns)
// for changes to path, invoking onChange on every successful reload. Call
// Stop to shut it down.
func NewWatcher(path string, onChange func(*File)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{path: path, watcher: fsw, onChange: onChange, ctx: ctx, cancel: cancel}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var mu sync.Mutex
	var debounceTimer *time.Timer

	reload := func() {
		raw, err := os.ReadFile(w.path)
		if err != nil {
			configLog.Warn("config_reload_read_failed", slog.String("path", w.path), slog.String("error", err.Error()))
			return
		}
		f, err := Parse(raw)
		if err != nil {
			configLog.Warn("config_reload_invalid", slog.String("path", w.path), slog.String("error", err.Error()))
			return
		}
		configLog.Info("config_reloaded", slog.String("path", w.path))
		w.onChange(f)
	}

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			mu.Lock()
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, reload)
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			configLog.Warn("config_watcher_error", slog.String("error", err.Error()))
		}
	}
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.watcher.Close()
}
