package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeTempConfig(t, "[engine]\npoll_interval_ms = 500\n")

	var mu sync.Mutex
	var seen []int
	w, err := NewWatcher(path, func(f *File) {
		mu.Lock()
		seen = append(seen, f.Engine.PollIntervalMS)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("[engine]\npoll_interval_ms = 1000\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("expected onChange to fire after rewriting the config file")
	}
	if seen[len(seen)-1] != 1000 {
		t.Errorf("expected reloaded poll interval 1000, got %d", seen[len(seen)-1])
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.toml")
	if err := os.WriteFile(path, []byte("[engine]\npoll_interval_ms = 500\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var mu sync.Mutex
	fired := false
	w, err := NewWatcher(path, func(*File) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("noise"), 0600); err != nil {
		t.Fatalf("write unrelated file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Fatal("expected onChange not to fire for an unrelated file in the same directory")
	}
}
