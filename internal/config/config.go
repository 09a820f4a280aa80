package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755
)

var (
	// ConfigDir is the global configuration directory (~/.probecli)
	ConfigDir string

	// DatabasePath is the SQLite database file for load test runs and samples
	DatabasePath string

	// DefaultsFile is the optional YAML file holding default settings
	DefaultsFile string
)

// Initialize sets up the configuration directory and global paths.
// It creates ~/.probecli/ if it doesn't exist.
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	ConfigDir = filepath.Join(homeDir, ".probecli")
	DatabasePath = filepath.Join(ConfigDir, "probecli.db")
	DefaultsFile = filepath.Join(ConfigDir, "config.yaml")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	return nil
}
