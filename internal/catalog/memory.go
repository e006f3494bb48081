package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// Memory is an in-process catalog. It backs tests and the demo mode of
// `catindex serve`.
type Memory struct {
	mu      sync.RWMutex
	items   map[string]*memItem // keyed by path
	offline map[string]bool     // zones whose probe fails
	denied  map[string]bool     // paths that return a permission error
	nextID  int64
	now     func() time.Time
}

type memItem struct {
	item Item
	avus []AVU
	acls []ACL
}

// NewMemory creates an empty catalog.
func NewMemory() *Memory {
	return &Memory{
		items:   make(map[string]*memItem),
		offline: make(map[string]bool),
		denied:  make(map[string]bool),
		nextID:  10000,
		now:     time.Now,
	}
}

// SetClock overrides the timestamp source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// AddZone creates the root collection of zone.
func (m *Memory) AddZone(zone, owner string) Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	root := ZoneRoot(zone)
	if it, ok := m.items[root]; ok {
		return it.item
	}
	return m.insertLocked(zone, root, KindCollection, owner, 0)
}

// AddCollection creates a collection. The parent must exist.
func (m *Memory) AddCollection(path, owner string) (Item, error) {
	return m.add(path, KindCollection, owner, 0)
}

// AddDataObject creates a data object. The parent must exist.
func (m *Memory) AddDataObject(path, owner string, size int64) (Item, error) {
	return m.add(path, KindDataObject, owner, size)
}

func (m *Memory) add(path string, kind Kind, owner string, size int64) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = Clean(path)
	if _, ok := m.items[path]; ok {
		return Item{}, fmt.Errorf("%s already exists", path)
	}
	parent, ok := m.items[Parent(path)]
	if !ok || parent.item.Kind != KindCollection {
		return Item{}, fmt.Errorf("parent collection of %s does not exist", path)
	}
	return m.insertLocked(ZoneOf(path), path, kind, owner, size), nil
}

func (m *Memory) insertLocked(zone, path string, kind Kind, owner string, size int64) Item {
	m.nextID++
	ts := m.now().UTC().Truncate(time.Second)
	it := Item{
		Zone:     zone,
		ID:       m.nextID,
		Kind:     kind,
		Path:     path,
		Name:     Base(path),
		Owner:    owner,
		Created:  ts,
		Modified: ts,
	}
	if kind == KindDataObject {
		it.Size = size
	}
	m.items[path] = &memItem{item: it}
	return it
}

// AddMetadata appends AVUs to an item.
func (m *Memory) AddMetadata(path string, avus ...AVU) error {
	return m.update(path, func(it *memItem) {
		it.avus = append(it.avus, avus...)
	})
}

// SetMetadata replaces an item's AVUs.
func (m *Memory) SetMetadata(path string, avus ...AVU) error {
	return m.update(path, func(it *memItem) {
		it.avus = append([]AVU(nil), avus...)
	})
}

// SetACLs replaces an item's access-control entries.
func (m *Memory) SetACLs(path string, acls ...ACL) error {
	return m.update(path, func(it *memItem) {
		it.acls = append([]ACL(nil), acls...)
	})
}

func (m *Memory) update(path string, fn func(*memItem)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[Clean(path)]
	if !ok {
		return engerrors.NotFound(ZoneOf(path), path)
	}
	fn(it)
	it.item.Modified = m.now().UTC().Truncate(time.Second)
	return nil
}

// Move renames path and everything beneath it. Ids are preserved.
func (m *Memory) Move(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, to = Clean(from), Clean(to)
	if _, ok := m.items[from]; !ok {
		return engerrors.NotFound(ZoneOf(from), from)
	}
	if _, ok := m.items[to]; ok {
		return fmt.Errorf("%s already exists", to)
	}
	if parent, ok := m.items[Parent(to)]; !ok || parent.item.Kind != KindCollection {
		return fmt.Errorf("parent collection of %s does not exist", to)
	}
	if IsUnder(to, from) {
		return fmt.Errorf("cannot move %s beneath itself", from)
	}

	moved := make(map[string]*memItem)
	for p, it := range m.items {
		if !IsUnder(p, from) {
			continue
		}
		np := to + p[len(from):]
		delete(m.items, p)
		it.item.Path = np
		it.item.Name = Base(np)
		it.item.Zone = ZoneOf(np)
		moved[np] = it
	}
	for p, it := range moved {
		m.items[p] = it
	}
	return nil
}

// Remove deletes path and everything beneath it.
func (m *Memory) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = Clean(path)
	if _, ok := m.items[path]; !ok {
		return engerrors.NotFound(ZoneOf(path), path)
	}
	for p := range m.items {
		if IsUnder(p, path) {
			delete(m.items, p)
		}
	}
	return nil
}

// Lookup returns the item at path.
func (m *Memory) Lookup(path string) (Item, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[Clean(path)]
	if !ok {
		return Item{}, false
	}
	return it.item, true
}

// Walk returns every item of zone sorted by path.
func (m *Memory) Walk(zone string) []Item {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Item
	for _, it := range m.items {
		if it.item.Zone == zone {
			out = append(out, it.item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Zones returns the names of every zone, sorted.
func (m *Memory) Zones() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for path, it := range m.items {
		if path == ZoneRoot(it.item.Zone) {
			out = append(out, it.item.Zone)
		}
	}
	sort.Strings(out)
	return out
}

// SetOffline makes every session probe of zone fail.
func (m *Memory) SetOffline(zone string, offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline[zone] = offline
}

// Deny makes reads of path fail with a permission error.
func (m *Memory) Deny(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[Clean(path)] = true
}

// Open returns a session for zone.
func (m *Memory) Open(zone string) *MemorySession {
	return &MemorySession{catalog: m, zone: zone}
}

// MemorySession is a Session over a Memory catalog.
type MemorySession struct {
	catalog *Memory
	zone    string
	closed  atomic.Bool
}

var _ Session = (*MemorySession)(nil)

func (s *MemorySession) get(path string) (*memItem, error) {
	if s.closed.Load() {
		return nil, engerrors.New(engerrors.ErrCodeLeaseInvalid, "session closed", nil)
	}
	path = Clean(path)
	if ZoneOf(path) != s.zone {
		return nil, engerrors.NotFound(s.zone, path)
	}
	if s.catalog.denied[path] {
		return nil, engerrors.New(engerrors.ErrCodeCatalogPermission, "permission denied: "+path, nil).
			WithDetail("path", path)
	}
	it, ok := s.catalog.items[path]
	if !ok {
		return nil, engerrors.NotFound(s.zone, path)
	}
	return it, nil
}

// Stat implements Session.
func (s *MemorySession) Stat(_ context.Context, path string) (Item, error) {
	s.catalog.mu.RLock()
	defer s.catalog.mu.RUnlock()

	it, err := s.get(path)
	if err != nil {
		return Item{}, err
	}
	return it.item, nil
}

// Metadata implements Session.
func (s *MemorySession) Metadata(_ context.Context, item Item) ([]AVU, error) {
	s.catalog.mu.RLock()
	defer s.catalog.mu.RUnlock()

	it, err := s.get(item.Path)
	if err != nil {
		return nil, err
	}
	return append([]AVU(nil), it.avus...), nil
}

// ACLs implements Session.
func (s *MemorySession) ACLs(_ context.Context, item Item) ([]ACL, error) {
	s.catalog.mu.RLock()
	defer s.catalog.mu.RUnlock()

	it, err := s.get(item.Path)
	if err != nil {
		return nil, err
	}
	return append([]ACL(nil), it.acls...), nil
}

// Children implements Session.
func (s *MemorySession) Children(_ context.Context, collection string) ([]Item, error) {
	s.catalog.mu.RLock()
	defer s.catalog.mu.RUnlock()

	parent, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	if parent.item.Kind != KindCollection {
		return nil, nil
	}

	var out []Item
	for p, it := range s.catalog.items {
		if Parent(p) == parent.item.Path && p != parent.item.Path {
			out = append(out, it.item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Ping implements Session.
func (s *MemorySession) Ping(_ context.Context) error {
	s.catalog.mu.RLock()
	defer s.catalog.mu.RUnlock()

	if s.closed.Load() {
		return engerrors.New(engerrors.ErrCodeLeaseInvalid, "session closed", nil)
	}
	if s.catalog.offline[s.zone] {
		return engerrors.New(engerrors.ErrCodeCatalogUnavailable, "zone "+s.zone+" offline", nil)
	}
	if _, ok := s.catalog.items[ZoneRoot(s.zone)]; !ok {
		return engerrors.NotFound(s.zone, ZoneRoot(s.zone))
	}
	return nil
}

// Close implements Session.
func (s *MemorySession) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (s *MemorySession) Closed() bool {
	return s.closed.Load()
}
