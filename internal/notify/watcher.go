// Package notify watches configuration files for changes so long-running
// servers can pick up edits without a restart.
package notify

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a single file and dispatches a callback on change.
// Editors often replace files instead of writing in place, so the watch is
// on the parent directory and events are filtered by name.
type FileWatcher struct {
	path     string
	callback func(path string)
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewFileWatcher creates a watcher for path. The callback runs on the
// watcher goroutine; keep it short.
func NewFileWatcher(path string, callback func(path string)) *FileWatcher {
	return &FileWatcher{
		path:     filepath.Clean(path),
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Start begins watching. Call Stop() to clean up.
func (fw *FileWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(fw.path)); err != nil {
		_ = w.Close()
		return err
	}
	fw.watcher = w

	go fw.loop()
	log.Printf("notify: watching %s for changes", fw.path)
	return nil
}

// Stop shuts down the watcher and waits for the loop to exit.
func (fw *FileWatcher) Stop() {
	if fw.watcher != nil {
		_ = fw.watcher.Close()
	}
	<-fw.done
}

func (fw *FileWatcher) loop() {
	defer close(fw.done)
	for {
		select {
		case evt, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != fw.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 && fw.callback != nil {
				fw.callback(fw.path)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}
