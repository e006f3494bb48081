package document

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/catindex/internal/catalog"
)

// DefaultPathCacheSize bounds the path to id memo when no size is configured.
const DefaultPathCacheSize = 100000

// PathIDCache memoizes catalog path to numeric id resolution.
// Entries are written once per key; InvalidatePrefix is the only removal
// besides LRU eviction.
type PathIDCache struct {
	cache *lru.Cache[string, int64]
}

// NewPathIDCache creates a cache holding at most size entries.
func NewPathIDCache(size int) *PathIDCache {
	if size <= 0 {
		size = DefaultPathCacheSize
	}
	cache, _ := lru.New[string, int64](size)
	return &PathIDCache{cache: cache}
}

func cacheKey(zone, path string) string {
	return zone + "\x00" + path
}

// Resolve returns the id of path, asking the session on a miss.
func (c *PathIDCache) Resolve(ctx context.Context, s catalog.Session, zone, path string) (int64, error) {
	path = catalog.Clean(path)
	key := cacheKey(zone, path)
	if id, ok := c.cache.Get(key); ok {
		return id, nil
	}

	item, err := s.Stat(ctx, path)
	if err != nil {
		return 0, err
	}
	c.cache.ContainsOrAdd(key, item.ID)
	return item.ID, nil
}

// Remember records a known path id unless one is already cached.
func (c *PathIDCache) Remember(zone, path string, id int64) {
	c.cache.ContainsOrAdd(cacheKey(zone, catalog.Clean(path)), id)
}

// Lookup returns a cached id without consulting the catalog.
func (c *PathIDCache) Lookup(zone, path string) (int64, bool) {
	return c.cache.Peek(cacheKey(zone, catalog.Clean(path)))
}

// InvalidatePrefix removes path and every cached path beneath it.
// Returns the number of removed entries.
func (c *PathIDCache) InvalidatePrefix(zone, path string) int {
	root := catalog.Clean(path)
	prefix := zone + "\x00"
	n := 0
	for _, key := range c.cache.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if catalog.IsUnder(key[len(prefix):], root) {
			if c.cache.Remove(key) {
				n++
			}
		}
	}
	return n
}

// Clear drops every entry.
func (c *PathIDCache) Clear() {
	c.cache.Purge()
}

// Len returns the number of cached entries.
func (c *PathIDCache) Len() int {
	return c.cache.Len()
}
