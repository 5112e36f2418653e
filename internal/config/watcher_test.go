package config_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/charterline/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
session:
  echo_cooldown: 4s
`

const watcherUpdatedYAML = `
server:
  log_level: debug
session:
  echo_cooldown: 2s
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// rewrite writes content and bumps the mtime so the poller notices the edit
// even on filesystems with coarse timestamps.
func rewrite(t *testing.T, path, content string, bump time.Duration) {
	t.Helper()
	writeFile(t, path, content)
	mt := time.Now().Add(bump)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

func startWatcher(t *testing.T, path string, onChange func(old, new *config.Config)) *config.Watcher {
	t.Helper()
	w, err := config.NewWatcher(path, onChange,
		config.WithInterval(20*time.Millisecond),
		config.WithWatcherLogger(slog.New(slog.DiscardHandler)),
	)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	w := startWatcher(t, path, nil)
	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherInvalidYAML)

	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	var (
		mu       sync.Mutex
		old, got *config.Config
	)
	changed := make(chan struct{}, 1)
	w := startWatcher(t, path, func(o, n *config.Config) {
		mu.Lock()
		old, got = o, n
		mu.Unlock()
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	rewrite(t, path, watcherUpdatedYAML, time.Second)

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for onChange")
	}

	mu.Lock()
	defer mu.Unlock()
	if old.Server.LogLevel != config.LogInfo {
		t.Errorf("old log_level: got %q, want info", old.Server.LogLevel)
	}
	if got.Session.Cooldown() != 2*time.Second {
		t.Errorf("new cooldown: got %s, want 2s", got.Session.Cooldown())
	}
	if w.Current() != got {
		t.Error("Current() should return the reloaded config")
	}
}

func TestWatcher_InvalidEditKeepsPrevious(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	calls := make(chan struct{}, 4)
	w := startWatcher(t, path, func(_, _ *config.Config) { calls <- struct{}{} })
	before := w.Current()

	rewrite(t, path, watcherInvalidYAML, time.Second)
	time.Sleep(150 * time.Millisecond)

	select {
	case <-calls:
		t.Fatal("onChange must not fire for an invalid config")
	default:
	}
	if w.Current() != before {
		t.Error("Current() should still be the last valid config")
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	calls := make(chan struct{}, 4)
	startWatcher(t, path, func(_, _ *config.Config) { calls <- struct{}{} })

	rewrite(t, path, watcherValidYAML, time.Second)
	time.Sleep(150 * time.Millisecond)

	select {
	case <-calls:
		t.Fatal("onChange must not fire when content is unchanged")
	default:
	}
}

func TestWatcher_StopEndsRun(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, watcherValidYAML)

	w, err := config.NewWatcher(path, nil, config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	w.Stop()
	w.Stop() // idempotent

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
