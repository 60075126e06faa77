package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// WatcherConfig holds watcher configuration
type WatcherConfig struct {
	// Dir is the definitions directory to watch. Required.
	Dir string
	// Debounce is how long the directory must stay quiet before OnChange
	// fires. Defaults to 500ms.
	Debounce time.Duration
	// OnChange runs after a quiet period follows one or more definition
	// file changes. Required.
	OnChange func()
	Logger   zerolog.Logger
}

// Watcher monitors the definitions directory and triggers a resync when
// files settle. Rapid bursts of writes collapse into one OnChange call.
type Watcher struct {
	cfg     WatcherConfig
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a new definitions watcher
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("definitions directory is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("OnChange callback is required")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		cfg:     cfg,
		watcher: watcher,
		logger:  cfg.Logger.With().Str("component", "definitions-watcher").Logger(),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the definitions directory
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch definitions directory: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().
		Str("path", w.cfg.Dir).
		Msg("Definitions watcher started")

	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.debounceMu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.debounceMu.Unlock()
	})
}

// eventLoop processes file system events
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().
				Str("path", event.Name).
				Str("op", event.Op.String()).
				Msg("Definition changed")
			w.scheduleChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// scheduleChange resets the debounce timer for the pending change
func (w *Watcher) scheduleChange() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.cfg.Debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.cfg.OnChange()
	})
}
