package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const megabyte = 1 << 20

// RotateOptions bounds an engine log file.
type RotateOptions struct {
	// MaxBytes is the size that triggers a rotation. Zero rotates before
	// every write that lands on a non-empty file.
	MaxBytes int64
	// Keep is the number of rotated generations retained next to the live file.
	Keep int
	// NoSync skips the fsync after each write.
	NoSync bool
}

// RotatingWriter appends log records to a file and rolls it into numbered
// generations (engine.log.1 is the newest) once it grows past MaxBytes.
type RotatingWriter struct {
	path string
	opts RotateOptions

	mu   sync.Mutex
	f    *os.File
	size int64
}

// NewRotatingWriter opens path for appending, creating its directory.
func NewRotatingWriter(path string, opts RotateOptions) (*RotatingWriter, error) {
	if opts.Keep < 1 {
		opts.Keep = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	w := &RotatingWriter{path: path, opts: opts}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends p, rolling the file first when p would push it over the limit.
// A failed roll is reported on stderr and the record still lands in the
// current file.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.opts.MaxBytes {
		if err := w.roll(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "catindex: log rotation: %v\n", err)
		}
	}

	n, err := w.f.Write(p)
	w.size += int64(n)
	if err == nil && !w.opts.NoSync {
		_ = w.f.Sync()
	}
	return n, err
}

// Path is the live log file.
func (w *RotatingWriter) Path() string { return w.path }

// Sync flushes the live file.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Sync()
}

// Close releases the live file. Writes after Close fail with os.ErrClosed.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.f, w.size = f, info.Size()
	return nil
}

func (w *RotatingWriter) generation(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

// roll drops the oldest generation, shifts the rest up by one and moves the
// live file to generation 1.
func (w *RotatingWriter) roll() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	w.f = nil

	_ = os.Remove(w.generation(w.opts.Keep))
	for n := w.opts.Keep - 1; n >= 1; n-- {
		_ = os.Rename(w.generation(n), w.generation(n+1))
	}
	renameErr := os.Rename(w.path, w.generation(1))

	if err := w.open(); err != nil {
		return err
	}
	if renameErr != nil {
		return fmt.Errorf("rotate log file: %w", renameErr)
	}
	return nil
}
