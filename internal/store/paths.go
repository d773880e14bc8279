// Package store persists convergence runs and their per-iteration records
// in a SQLite database under the .tardis directory.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// GlobalTardisPath returns the path to the global .tardis directory.
// On Unix: ~/.tardis
// On Windows: %USERPROFILE%\.tardis
func GlobalTardisPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".tardis"), nil
}

// LocalTardisPath returns the path to the local .tardis directory
// for the given working root.
func LocalTardisPath(root string) string {
	return filepath.Join(root, ".tardis")
}
