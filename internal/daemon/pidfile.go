package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrPIDFileNotFound is returned when the PID file doesn't exist.
var ErrPIDFileNotFound = errors.New("PID file not found")

// ErrAlreadyRunning is returned by Acquire when another engine holds the lock.
var ErrAlreadyRunning = errors.New("engine already running")

// PIDFile records the serving engine's process ID. Ownership is an
// exclusive lock on a sibling ".lock" file, so a PID file left by a crashed
// engine never blocks the next one.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// NewPIDFile returns a PIDFile for path. Nothing touches disk until Acquire.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire locks the PID file and writes the current PID into it.
func (p *PIDFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	ok, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock PID file: %w", err)
	}
	if !ok {
		if pid, rerr := p.Read(); rerr == nil {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		return ErrAlreadyRunning
	}

	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		_ = p.lock.Unlock()
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read returns the PID stored in the file, whoever owns it.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrPIDFileNotFound
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID in file: %d", pid)
	}
	return pid, nil
}

// Held reports whether this PIDFile currently owns the lock.
func (p *PIDFile) Held() bool {
	return p.lock.Locked()
}

// Release removes the PID file and drops the lock. It is a no-op unless
// Acquire succeeded.
func (p *PIDFile) Release() error {
	if !p.lock.Locked() {
		return nil
	}
	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		err = fmt.Errorf("remove PID file: %w", err)
	} else {
		err = nil
	}
	if uerr := p.lock.Unlock(); uerr != nil && err == nil {
		err = fmt.Errorf("unlock PID file: %w", uerr)
	}
	return err
}
