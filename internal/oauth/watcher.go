package oauth

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gatepass/pkg/logging"
)

// DefaultDebounceInterval is how long to wait after the last change
// before firing the callback. Logins write the token and the client
// registration close together; one notification covers both.
const DefaultDebounceInterval = 500 * time.Millisecond

// DefaultWatchInterval is the polling cadence when fsnotify is
// unavailable.
const DefaultWatchInterval = 5 * time.Second

// CredentialWatcherConfig configures the credential watcher.
type CredentialWatcherConfig struct {
	// TokenDir is the token storage directory to watch.
	TokenDir string

	// WatchInterval is the fallback polling interval when fsnotify is
	// not available.
	WatchInterval time.Duration

	// OnChange is called, debounced, when a token file is written or
	// removed.
	OnChange func()
}

// CredentialWatcher notices token files written by other processes, so
// a long-lived session picks up a login performed in a separate
// terminal. It uses fsnotify with a polling fallback.
type CredentialWatcher struct {
	mu sync.Mutex

	config    CredentialWatcherConfig
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool

	lastModTimes map[string]time.Time

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// NewCredentialWatcher creates a watcher for the given token directory.
func NewCredentialWatcher(config CredentialWatcherConfig) *CredentialWatcher {
	if config.WatchInterval == 0 {
		config.WatchInterval = DefaultWatchInterval
	}
	return &CredentialWatcher{
		config:       config,
		lastModTimes: make(map[string]time.Time),
	}
}

// Start begins watching the token directory.
func (w *CredentialWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.running = true

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("CredentialWatcher", "fsnotify not available, falling back to polling: %v", err)
		go w.pollForChanges()
		return nil
	}
	w.fsWatcher = watcher

	if err := w.fsWatcher.Add(w.config.TokenDir); err != nil {
		logging.Warn("CredentialWatcher", "Failed to watch %s, falling back to polling: %v",
			w.config.TokenDir, err)
		w.fsWatcher.Close()
		w.fsWatcher = nil
		go w.pollForChanges()
		return nil
	}

	// Capture channels before releasing the lock so Stop cannot race
	// the event loop.
	eventsCh := w.fsWatcher.Events
	errorsCh := w.fsWatcher.Errors

	go w.processEvents(eventsCh, errorsCh)

	logging.Debug("CredentialWatcher", "Watching %s for token changes", w.config.TokenDir)
	return nil
}

func (w *CredentialWatcher) processEvents(eventsCh <-chan fsnotify.Event, errorsCh <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-eventsCh:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errorsCh:
			if !ok {
				return
			}
			logging.Error("CredentialWatcher", err, "fsnotify error")
		}
	}
}

func (w *CredentialWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".json" {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
		return
	}

	logging.Debug("CredentialWatcher", "Token file changed: %s", filepath.Base(event.Name))
	w.triggerChangeDebounced()
}

// triggerChangeDebounced fires the callback after a quiet period, so a
// burst of file writes produces a single notification.
func (w *CredentialWatcher) triggerChangeDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(DefaultDebounceInterval, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

// pollForChanges is the fallback when fsnotify is unavailable.
func (w *CredentialWatcher) pollForChanges() {
	ticker := time.NewTicker(w.config.WatchInterval)
	defer ticker.Stop()

	w.updateModTimes()

	for {
		select {
		case <-w.stopCh:
			return

		case <-ticker.C:
			if w.checkForChanges() {
				logging.Debug("CredentialWatcher", "Token changes detected via polling")
				w.triggerChangeDebounced()
			}
		}
	}
}

func (w *CredentialWatcher) updateModTimes() {
	entries, err := os.ReadDir(w.config.TokenDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if info, err := entry.Info(); err == nil {
			w.lastModTimes[entry.Name()] = info.ModTime()
		}
	}
}

func (w *CredentialWatcher) checkForChanges() bool {
	entries, err := os.ReadDir(w.config.TokenDir)
	if err != nil {
		return false
	}

	changed := false
	current := make(map[string]time.Time, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		current[entry.Name()] = info.ModTime()

		last, seen := w.lastModTimes[entry.Name()]
		if !seen || info.ModTime().After(last) {
			changed = true
		}
	}

	// Removed files count as changes too.
	for name := range w.lastModTimes {
		if _, still := current[name]; !still {
			changed = true
		}
	}

	w.lastModTimes = current
	return changed
}

// Stop stops the watcher.
func (w *CredentialWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fsWatcher != nil {
		if err := w.fsWatcher.Close(); err != nil {
			logging.Warn("CredentialWatcher", "Error closing fsnotify watcher: %v", err)
		}
		w.fsWatcher = nil
	}
}

// IsRunning reports whether the watcher is active.
func (w *CredentialWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
