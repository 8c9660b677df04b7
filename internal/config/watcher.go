package config

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/lspmux/internal/logging"
)

// Watcher reloads the config file when it changes on disk and hands the new
// configuration to a callback. Editors save configs in place; new sessions
// pick up the reloaded settings, existing ones keep running with the old.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     *logging.Logger
	onLoad  func(*Config)
	done    chan struct{}
}

// Watch starts watching path. onLoad is called from the watcher goroutine
// with each successfully reloaded config.
func Watch(path string, log *logging.Logger, onLoad func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save,
	// which drops a file-level watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		log:     log.WithComponent("config-watcher"),
		onLoad:  onLoad,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config reload failed", "error", err)
				continue
			}
			w.log.Info("config reloaded", "path", w.path)
			w.onLoad(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// Close stops watching and waits for the watcher goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
