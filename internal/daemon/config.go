// Package daemon serves the engine's admin control surface: JSON-RPC 2.0
// over a Unix socket, a matching client and the PID file of a running
// engine.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/catindex/internal/config"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// MaxSocketPath is the longest Unix socket path that fits sun_path on
// both Linux (108) and macOS (104), leaving room for the terminator.
const MaxSocketPath = 103

// Config locates the engine's sockets and PID file.
type Config struct {
	SocketPath string
	// EventsSocketPath is where catalog events arrive. Optional.
	EventsSocketPath string
	PIDPath          string
	// Timeout bounds one client request.
	Timeout time.Duration
}

// FromConfig extracts the daemon settings of cfg.
func FromConfig(cfg config.DaemonConfig) Config {
	return Config{
		SocketPath:       cfg.SocketPath,
		EventsSocketPath: cfg.EventsSocketPath,
		PIDPath:          cfg.PIDPath,
		Timeout:          cfg.Timeout,
	}
}

// DefaultConfig returns the daemon settings of the default configuration.
func DefaultConfig() Config {
	return FromConfig(config.NewConfig().Daemon)
}

// Validate reports the first unusable setting as an ErrCodeConfigInvalid
// engine error.
func (c Config) Validate() error {
	switch {
	case c.SocketPath == "":
		return engerrors.ConfigError("daemon.socket_path cannot be empty", nil)
	case c.PIDPath == "":
		return engerrors.ConfigError("daemon.pid_path cannot be empty", nil)
	case c.Timeout <= 0:
		return engerrors.ConfigError("daemon.timeout must be positive", nil)
	case c.EventsSocketPath != "" && filepath.Clean(c.EventsSocketPath) == filepath.Clean(c.SocketPath):
		return engerrors.ConfigError("daemon.events_socket_path must differ from daemon.socket_path", nil)
	}
	for key, p := range map[string]string{
		"daemon.socket_path":        c.SocketPath,
		"daemon.events_socket_path": c.EventsSocketPath,
	} {
		if len(p) > MaxSocketPath {
			return engerrors.ConfigError(
				fmt.Sprintf("%s is %d bytes, Unix sockets allow at most %d", key, len(p), MaxSocketPath), nil).
				WithDetail("path", p)
		}
	}
	return nil
}

// EnsureDir creates the directories holding the sockets and PID file,
// readable by the owner only.
func (c Config) EnsureDir() error {
	for _, p := range []string{c.SocketPath, c.EventsSocketPath, c.PIDPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(p), err)
		}
	}
	return nil
}
