package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ChlorophyllA/skin2/internal/observability"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadFunc receives the freshly loaded configuration
type ReloadFunc func(cfg *Config)

// Watcher reloads the config file when it changes on disk
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	onReload ReloadFunc
	debounce time.Duration

	done     chan struct{}
	stopOnce sync.Once
	timerMu  sync.Mutex
	timer    *time.Timer
}

// NewWatcher creates a watcher for the loader's config file. The parent
// directory is watched so atomic replace-on-save editors are picked up.
func NewWatcher(loader *Loader, onReload ReloadFunc) (*Watcher, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if onReload == nil {
		return nil, fmt.Errorf("reload callback is required")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		loader:   loader,
		watcher:  fw,
		onReload: onReload,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching
func (w *Watcher) Start() error {
	path, err := filepath.Abs(w.loader.GetConfigPath())
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	if err := w.watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go w.run(path)

	log.Info().Str("path", path).Msg("Config watcher started")
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timerMu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run(path string) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Config watcher error")

		case <-w.done:
			return
		}
	}
}

// schedule debounces bursts of events from a single save
func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	cfg, err := w.loader.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Config reload failed, keeping previous config")
		observability.RecordConfigReload(false)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("Reloaded config is invalid, keeping previous config")
		observability.RecordConfigReload(false)
		return
	}

	log.Info().Msg("Config reloaded")
	observability.RecordConfigReload(true)
	w.onReload(cfg)
}
