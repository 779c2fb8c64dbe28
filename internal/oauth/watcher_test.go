package oauth

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeTokenFile(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(`{"access_token":"x"}`), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestNewCredentialWatcher(t *testing.T) {
	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir: "/tmp/test",
	})

	if watcher == nil {
		t.Fatal("Expected non-nil watcher")
	}

	// Check defaults were applied
	if watcher.config.WatchInterval != DefaultWatchInterval {
		t.Errorf("Expected WatchInterval to be %v, got %v", DefaultWatchInterval, watcher.config.WatchInterval)
	}
}

func TestCredentialWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()

	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir: dir,
	})

	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !watcher.IsRunning() {
		t.Error("Expected watcher to be running")
	}

	// Starting again should be a no-op
	if err := watcher.Start(); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	watcher.Stop()

	if watcher.IsRunning() {
		t.Error("Expected watcher to be stopped")
	}

	// Stopping again should be a no-op
	watcher.Stop()
}

func TestCredentialWatcher_DetectsTokenWrites(t *testing.T) {
	dir := t.TempDir()

	var changeCount int32

	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir:      dir,
		WatchInterval: 50 * time.Millisecond,
		OnChange: func() {
			atomic.AddInt32(&changeCount, 1)
		},
	})

	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// Give the watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	writeTokenFile(t, dir, "abc123.json")

	// Wait for the debounce window to elapse
	time.Sleep(800 * time.Millisecond)

	count := atomic.LoadInt32(&changeCount)
	if count < 1 {
		t.Errorf("Expected at least 1 change callback, got %d", count)
	}
}

func TestCredentialWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	var changeCount int32

	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir:      dir,
		WatchInterval: 50 * time.Millisecond,
		OnChange: func() {
			atomic.AddInt32(&changeCount, 1)
		},
	})

	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	// Not token files: wrong extension
	writeTokenFile(t, dir, "notes.txt")
	writeTokenFile(t, dir, "abc123.json.tmp")

	time.Sleep(800 * time.Millisecond)

	count := atomic.LoadInt32(&changeCount)
	if count != 0 {
		t.Errorf("Expected no callbacks for unrelated files, got %d", count)
	}
}

func TestCredentialWatcher_DetectsRemoval(t *testing.T) {
	dir := t.TempDir()
	writeTokenFile(t, dir, "abc123.json")

	var changeCount int32

	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir:      dir,
		WatchInterval: 50 * time.Millisecond,
		OnChange: func() {
			atomic.AddInt32(&changeCount, 1)
		},
	})

	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if err := os.Remove(filepath.Join(dir, "abc123.json")); err != nil {
		t.Fatalf("Failed to remove token file: %v", err)
	}

	time.Sleep(800 * time.Millisecond)

	count := atomic.LoadInt32(&changeCount)
	if count < 1 {
		t.Errorf("Expected a change callback after removal, got %d", count)
	}
}

func TestCredentialWatcher_DebounceCollapsesBurst(t *testing.T) {
	dir := t.TempDir()

	var changeCount int32

	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir:      dir,
		WatchInterval: 50 * time.Millisecond,
		OnChange: func() {
			atomic.AddInt32(&changeCount, 1)
		},
	})

	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	// A login writes the token and client registration close together;
	// simulate a burst of writes.
	for i := 0; i < 5; i++ {
		writeTokenFile(t, dir, fmt.Sprintf("entry%d.json", i))
		time.Sleep(50 * time.Millisecond)
	}

	// Wait for the final debounce to complete
	time.Sleep(900 * time.Millisecond)

	count := atomic.LoadInt32(&changeCount)
	if count < 1 {
		t.Errorf("Expected at least 1 change callback, got %d", count)
	}
	// Debouncing should collapse the burst to far fewer callbacks than
	// writes. The exact number depends on timing.
	if count > 4 {
		t.Errorf("Expected debouncing to reduce callbacks, got %d", count)
	}
}

func TestCredentialWatcher_UpdateModTimes(t *testing.T) {
	dir := t.TempDir()
	writeTokenFile(t, dir, "one.json")
	writeTokenFile(t, dir, "two.json")
	writeTokenFile(t, dir, "ignored.txt")

	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir: dir,
	})

	watcher.updateModTimes()

	if len(watcher.lastModTimes) != 2 {
		t.Errorf("Expected 2 modtimes, got %d", len(watcher.lastModTimes))
	}
}

func TestCredentialWatcher_CheckForChanges(t *testing.T) {
	dir := t.TempDir()
	writeTokenFile(t, dir, "abc123.json")

	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir: dir,
	})

	watcher.updateModTimes()

	if watcher.checkForChanges() {
		t.Error("Expected no changes initially")
	}

	time.Sleep(10 * time.Millisecond) // Ensure different modtime
	writeTokenFile(t, dir, "abc123.json")

	if !watcher.checkForChanges() {
		t.Error("Expected changes after file modification")
	}

	// Modtimes were updated, so no changes on the next call
	if watcher.checkForChanges() {
		t.Error("Expected no changes after modtimes were updated")
	}
}

func TestCredentialWatcher_CheckForChanges_RemovedFile(t *testing.T) {
	dir := t.TempDir()
	writeTokenFile(t, dir, "abc123.json")

	watcher := NewCredentialWatcher(CredentialWatcherConfig{
		TokenDir: dir,
	})

	watcher.updateModTimes()

	if err := os.Remove(filepath.Join(dir, "abc123.json")); err != nil {
		t.Fatalf("Failed to remove token file: %v", err)
	}

	if !watcher.checkForChanges() {
		t.Error("Expected a removed file to count as a change")
	}
}
