// SPDX-License-Identifier: Apache-2.0
package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsChanges(t *testing.T) {
	resetKoanf(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	initial := `log:
  level: info
`
	if err := os.WriteFile(configPath, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	watcher, err := NewWatcher([]string{configPath}, WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		changes <- cfg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher.Start(ctx)
	defer watcher.Stop()

	if cfg := watcher.Config(); cfg.Log.Level != "info" {
		t.Errorf("expected initial level info, got %q", cfg.Log.Level)
	}

	// Ensure the watcher is running before touching the file
	time.Sleep(100 * time.Millisecond)

	updated := `log:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to write updated config: %v", err)
	}
	now := time.Now()
	os.Chtimes(configPath, now, now)

	select {
	case cfg := <-changes:
		if cfg.Log.Level != "debug" {
			t.Errorf("expected reloaded level debug, got %q", cfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatchConfigNoPath(t *testing.T) {
	resetKoanf(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, cfg, err := WatchConfig(ctx, "")
	if err != nil {
		t.Fatalf("WatchConfig failed: %v", err)
	}
	defer watcher.Stop()

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}
