package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.docindex/logs, or a temp directory fallback when
// the home directory is unknown.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docindex", "logs")
	}
	return filepath.Join(home, ".docindex", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docindex.log")
}
