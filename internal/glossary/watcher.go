package glossary

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher keeps an up-to-date snapshot of a glossary file, reloading it
// when the file is written or recreated. A parse failure keeps the
// previous snapshot in place.
type Watcher struct {
	path string

	mu    sync.RWMutex
	rules Rules

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// NewWatcher loads the glossary once and starts watching its directory for
// changes. Watching the directory rather than the file survives the
// rename-and-replace pattern editors use on save.
func NewWatcher(path string) (*Watcher, error) {
	rules, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:  path,
		rules: rules,
		done:  make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("glossary watcher unavailable, using static rules")
		return w, nil
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		log.Warn().Err(err).Str("path", path).Msg("cannot watch glossary directory, using static rules")
		return w, nil
	}

	w.fsw = fsw
	go w.loop()
	return w, nil
}

// Rules returns the current rule snapshot.
func (w *Watcher) Rules() Rules {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rules
}

// Close stops the watcher goroutine.
func (w *Watcher) Close() {
	close(w.done)
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("glossary watcher error")
		}
	}
}

func (w *Watcher) reload() {
	rules, err := Load(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("glossary reload failed, keeping previous rules")
		return
	}

	w.mu.Lock()
	w.rules = rules
	w.mu.Unlock()
	log.Info().Str("path", w.path).Int("rules", len(rules)).Msg("glossary reloaded")
}
