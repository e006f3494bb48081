package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir is ~/.catindex/logs, or a directory under the system temp
// dir when there is no home.
func DefaultLogDir() string {
	base := os.TempDir()
	if home, err := os.UserHomeDir(); err == nil {
		base = home
	}
	return filepath.Join(base, ".catindex", "logs")
}

// DefaultLogPath is the live engine log in DefaultLogDir.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "engine.log")
}

// FindLogFile resolves the file `catindex logs` reads. An empty path means
// DefaultLogPath. When the live file is missing right after a rotation,
// the newest rotated generation is returned instead.
func FindLogFile(path string) (string, error) {
	if path == "" {
		path = DefaultLogPath()
	}
	for _, candidate := range []string{path, path + ".1"} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no log file at %s\nThe engine may not have run yet, or logging.file points elsewhere", path)
}
