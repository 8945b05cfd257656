package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the configuration when its file changes.
type Watcher struct {
	loader    *Loader
	watcher   *fsnotify.Watcher
	callbacks []func(*Config)
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	log       zerolog.Logger
}

// NewWatcher creates a watcher for the loader's file.
func NewWatcher(loader *Loader, log zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory, not the file, to catch editors that replace it.
	dir := filepath.Dir(loader.Path())
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	log.Debug().Str("path", dir).Str("file", filepath.Base(loader.Path())).Msg("watching directory for changes")

	return &Watcher{
		loader:  loader,
		watcher: w,
		done:    make(chan struct{}),
		log:     log,
	}, nil
}

// OnChange registers a callback that receives every successfully reloaded
// configuration. Invalid configurations are logged and skipped.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start watches for changes. It blocks until Stop is called.
func (w *Watcher) Start() {
	target := filepath.Clean(w.loader.Path())

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// Only trigger on write or create events
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("configuration file changed")
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("configuration watcher error")
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.log.Error().Err(err).Msg("ignoring invalid configuration")
		return
	}

	w.log.Info().Str("file", w.loader.Path()).Msg("configuration reloaded")

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(cfg)
	}
}
