package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/catindex/internal/logging"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates the file was created.
	OpCreate Operation = iota
	// OpModify indicates the file was written.
	OpModify
	// OpDelete indicates the file was removed.
	OpDelete
	// OpRename indicates the file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a change to one watched file.
type FileEvent struct {
	// Path is the absolute path of the watched file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures a FileWatcher.
type Options struct {
	// Debounce coalesces bursts of events per file. Editors and atomic
	// replace produce several events for one logical change.
	Debounce time.Duration
	Logger   *slog.Logger
}

// FileWatcher watches individual files through their parent directories,
// so atomic replacement (write temp, rename over) is observed.
type FileWatcher struct {
	opts Options
	fsw  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewFileWatcher creates a watcher.
func NewFileWatcher(opts Options) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &FileWatcher{
		opts:    opts,
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Watch delivers events for files to handler until ctx is done or Stop is
// called. handler runs on its own goroutine per debounced event.
func (w *FileWatcher) Watch(ctx context.Context, files []string, handler func(FileEvent)) error {
	targets := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve absolute path: %w", err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !targets[path] {
				continue
			}
			op, ok := convert(event.Op)
			if !ok {
				continue
			}
			w.schedule(FileEvent{Path: path, Operation: op, Timestamp: time.Now()}, handler)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("file_watch_error", slog.String("error", err.Error()))
		}
	}
}

func convert(op fsnotify.Op) (Operation, bool) {
	switch {
	case op&fsnotify.Create != 0:
		return OpCreate, true
	case op&fsnotify.Write != 0:
		return OpModify, true
	case op&fsnotify.Remove != 0:
		return OpDelete, true
	case op&fsnotify.Rename != 0:
		return OpRename, true
	default:
		return 0, false
	}
}

// schedule fires handler once the file has been quiet for the debounce window.
func (w *FileWatcher) schedule(ev FileEvent, handler func(FileEvent)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.opts.Debounce <= 0 {
		go handler(ev)
		return
	}
	if t, ok := w.pending[ev.Path]; ok {
		t.Stop()
	}
	w.pending[ev.Path] = time.AfterFunc(w.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, ev.Path)
		stopped := w.stopped
		w.mu.Unlock()
		if !stopped {
			handler(ev)
		}
	})
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	return w.fsw.Close()
}
