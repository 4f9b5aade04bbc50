package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDataDir returns ~/.monitor, creating it if missing, mirroring the
// teacher's GetAgentDeckDir.
func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("monitord: resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".monitor")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("monitord: create data dir: %w", err)
	}
	return dir, nil
}

func defaultConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "monitor.toml")
}

func defaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, "registry.db")
}
