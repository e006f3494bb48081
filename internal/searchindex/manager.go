package searchindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/gofrs/flock"

	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/logging"
)

// Options configures a Manager.
type Options struct {
	// QueryPath and IngestPath are index directories. Equal paths share
	// one index; empty means in memory.
	QueryPath  string
	IngestPath string
	Mapping    *mapping.IndexMappingImpl
	Logger     *slog.Logger
	// OnRefresh is called after every successful Refresh.
	OnRefresh func()
}

// Manager owns the query and ingest clients and swaps them on refresh.
type Manager struct {
	mu      sync.RWMutex
	query   *BleveClient
	ingest  *BleveClient
	shared  bool
	mapping *mapping.IndexMappingImpl
	lock    *flock.Flock
	logger  *slog.Logger

	onRefresh func()
	refreshes atomic.Uint64
}

// NewManager opens both clients. A disk ingest index is locked so no
// other process writes it.
func NewManager(opts Options) (*Manager, error) {
	m := &Manager{
		mapping:   opts.Mapping,
		logger:    opts.Logger,
		onRefresh: opts.OnRefresh,
	}
	if m.mapping == nil {
		m.mapping = DefaultMapping()
	}
	if m.logger == nil {
		m.logger = logging.Discard()
	}

	if opts.IngestPath != "" {
		if err := m.acquireLock(opts.IngestPath); err != nil {
			return nil, err
		}
	}

	ingest, err := OpenBleve(opts.IngestPath, m.mapping, m.logger)
	if err != nil {
		m.releaseLock()
		return nil, err
	}
	m.ingest = ingest

	if opts.QueryPath == opts.IngestPath {
		m.query = ingest
		m.shared = true
	} else {
		query, err := OpenBleve(opts.QueryPath, m.mapping, m.logger)
		if err != nil {
			_ = ingest.Close()
			m.releaseLock()
			return nil, err
		}
		m.query = query
	}
	return m, nil
}

func (m *Manager) acquireLock(indexPath string) error {
	lockPath := filepath.Clean(indexPath) + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return engerrors.New(engerrors.ErrCodeIndexLock, "failed to create lock directory", err)
	}
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return engerrors.New(engerrors.ErrCodeIndexLock, "failed to lock index", err)
	}
	if !ok {
		return engerrors.New(engerrors.ErrCodeIndexLock,
			fmt.Sprintf("index %s is locked by another process", indexPath), nil).
			WithDetail("lock", lockPath)
	}
	m.lock = fl
	return nil
}

func (m *Manager) releaseLock() {
	if m.lock != nil {
		_ = m.lock.Unlock()
		m.lock = nil
	}
}

// Query returns the read-path client.
func (m *Manager) Query() *BleveClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.query
}

// Ingest returns the write-path client.
func (m *Manager) Ingest() *BleveClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ingest
}

// Shared reports whether both roles use one index.
func (m *Manager) Shared() bool {
	return m.shared
}

// Refreshes returns how many refreshes have succeeded.
func (m *Manager) Refreshes() uint64 {
	return m.refreshes.Load()
}

// Refresh recreates both client handles.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ingest.Reopen(); err != nil {
		return err
	}
	if !m.shared {
		if err := m.query.Reopen(); err != nil {
			return err
		}
	}
	m.refreshes.Add(1)
	m.logger.Info("index_clients_refreshed",
		slog.String("ingest", displayPath(m.ingest.Path())),
		slog.String("query", displayPath(m.query.Path())))
	if m.onRefresh != nil {
		m.onRefresh()
	}
	return nil
}

// Reindex destroys the ingest index and recreates it empty with the
// current mapping. Search returns nothing until it is repopulated.
func (m *Manager) Reindex(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ingest.Recreate(m.mapping); err != nil {
		return err
	}
	m.logger.Warn("index_recreated", slog.String("path", displayPath(m.ingest.Path())))
	return nil
}

// UpdateMapping validates and installs m as the field-type schema. A
// bleve mapping is fixed at creation, so it is applied at once only when
// the ingest index is empty; otherwise it takes effect on the next
// Reindex. It reports whether the mapping was applied.
func (m *Manager) UpdateMapping(ctx context.Context, im *mapping.IndexMappingImpl) (bool, error) {
	if im == nil {
		return false, engerrors.Newf(engerrors.ErrCodeMapping, "mapping is nil")
	}
	if err := im.Validate(); err != nil {
		return false, engerrors.New(engerrors.ErrCodeMapping, "mapping failed validation", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mapping = im

	n, err := m.ingest.DocCount()
	if err != nil {
		return false, engerrors.New(engerrors.ErrCodeMapping, "cannot inspect index", err)
	}
	if n > 0 {
		m.logger.Info("mapping_deferred", slog.Uint64("documents", n))
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := m.ingest.Recreate(im); err != nil {
		return false, err
	}
	m.logger.Info("mapping_applied")
	return true, nil
}

// Mapping returns the mapping used for new indexes.
func (m *Manager) Mapping() *mapping.IndexMappingImpl {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mapping
}

// Close closes both clients and releases the ingest lock.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	if err := m.ingest.Close(); err != nil {
		firstErr = err
	}
	if !m.shared {
		if err := m.query.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.releaseLock()
	return firstErr
}

func displayPath(p string) string {
	if p == "" {
		return "memory"
	}
	return p
}
