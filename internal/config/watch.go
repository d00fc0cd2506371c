package config

import (
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and hands every
// valid new version to the callback. Invalid edits are logged and skipped;
// the last good config stays in effect.
type Watcher struct {
	path     string
	onChange func(Config)
	fw       *fsnotify.Watcher

	closeOnce sync.Once
	closed    chan struct{}
}

// Watch starts watching the config file's directory. Watching the directory
// rather than the file keeps the watch alive across editors that replace the
// file on save.
func Watch(path string, onChange func(Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, onChange: onChange, fw: fw, closed: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	want := filepath.Clean(w.path)
	for {
		select {
		case <-w.closed:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != want {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				log.Printf("CONFIG: reload skipped: %v", err)
				continue
			}
			log.Printf("CONFIG: reloaded %s", w.path)
			w.onChange(cfg)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("CONFIG: watcher error: %v", err)
		}
	}
}

// Close stops the watcher. Idempotent.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		err = w.fw.Close()
	})
	return err
}
