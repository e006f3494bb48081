// Package searchindex owns the search engine side of the pipeline: the
// query and ingest clients, the explicit field mapping, delete-by-query
// and the interactive search request.
package searchindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/catindex/internal/deletion"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/logging"
)

// deletePage is how many matches one delete-by-query round removes.
const deletePage = 1000

// ErrClosed is returned by operations on a closed client.
var ErrClosed = errors.New("index client is closed")

// IngestClient is the write path used by the worker.
type IngestClient interface {
	Upsert(ctx context.Context, id string, fields map[string]any) error
	BulkUpsert(ctx context.Context, docs map[string]map[string]any) error
	DeleteIDs(ctx context.Context, ids []string) (int, error)
	DeleteByQuery(ctx context.Context, q *deletion.Query) (int, error)
	Close() error
}

// QueryClient is the read path used by interactive search.
type QueryClient interface {
	Search(ctx context.Context, req Request) (*Response, error)
	Count(ctx context.Context, req Request) (uint64, error)
	Get(ctx context.Context, id string) (map[string]any, bool, error)
	Close() error
}

// BleveClient serves both roles over one bleve index. The index is
// in memory when path is empty.
type BleveClient struct {
	mu      sync.RWMutex
	index   bleve.Index
	path    string
	mapping mapping.IndexMapping
	closed  bool
	logger  *slog.Logger
}

// OpenBleve opens the index at path, creating it with m when absent.
func OpenBleve(path string, m mapping.IndexMapping, logger *slog.Logger) (*BleveClient, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &BleveClient{path: path, mapping: m, logger: logger}
	idx, err := c.open()
	if err != nil {
		return nil, err
	}
	c.index = idx
	return c, nil
}

func (c *BleveClient) open() (bleve.Index, error) {
	if c.path == "" {
		idx, err := bleve.NewMemOnly(c.mapping)
		if err != nil {
			return nil, engerrors.New(engerrors.ErrCodeMapping, "failed to create in-memory index", err)
		}
		return idx, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return nil, engerrors.New(engerrors.ErrCodeIndexWrite, fmt.Sprintf("failed to create directory for %s", c.path), err)
	}

	idx, err := bleve.Open(c.path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(c.path, c.mapping)
		if err == nil {
			c.logger.Info("index_created", slog.String("path", c.path))
		}
	}
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeIndexWrite, fmt.Sprintf("failed to open index %s", c.path), err)
	}
	return idx, nil
}

// Path returns the index directory, empty for an in-memory index.
func (c *BleveClient) Path() string {
	return c.path
}

// Reopen closes and reopens a disk index. In-memory indexes are kept,
// since reopening one would discard its contents.
func (c *BleveClient) Reopen() error {
	if c.path == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index != nil {
		_ = c.index.Close()
	}
	idx, err := c.open()
	if err != nil {
		c.closed = true
		return err
	}
	c.index = idx
	c.closed = false
	return nil
}

// Recreate destroys the index and creates an empty one with m.
func (c *BleveClient) Recreate(m mapping.IndexMapping) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index != nil {
		_ = c.index.Close()
		c.index = nil
	}
	if c.path != "" {
		if err := os.RemoveAll(c.path); err != nil {
			c.closed = true
			return engerrors.New(engerrors.ErrCodeIndexWrite, fmt.Sprintf("failed to remove index %s", c.path), err)
		}
	}
	c.mapping = m
	idx, err := c.open()
	if err != nil {
		c.closed = true
		return err
	}
	c.index = idx
	c.closed = false
	return nil
}

// Mapping returns the mapping the index was created with.
func (c *BleveClient) Mapping() mapping.IndexMapping {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.index != nil {
		return c.index.Mapping()
	}
	return c.mapping
}

// DocCount returns the number of documents in the index.
func (c *BleveClient) DocCount() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, ErrClosed
	}
	return c.index.DocCount()
}

// Upsert writes one document under id, replacing any previous version.
func (c *BleveClient) Upsert(ctx context.Context, id string, fields map[string]any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return engerrors.New(engerrors.ErrCodeIndexWrite, "upsert failed", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.index.Index(id, fields); err != nil {
		return engerrors.New(engerrors.ErrCodeIndexWrite, fmt.Sprintf("failed to index document %s", id), err)
	}
	return nil
}

// BulkUpsert writes docs (keyed by id) in one batch.
func (c *BleveClient) BulkUpsert(ctx context.Context, docs map[string]map[string]any) error {
	if len(docs) == 0 {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return engerrors.New(engerrors.ErrCodeIndexWrite, "bulk upsert failed", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := c.index.NewBatch()
	for id, fields := range docs {
		if err := batch.Index(id, fields); err != nil {
			return engerrors.New(engerrors.ErrCodeIndexWrite, fmt.Sprintf("failed to index document %s", id), err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return engerrors.New(engerrors.ErrCodeIndexWrite, "failed to execute batch", err)
	}
	return nil
}

// DeleteIDs removes documents by id. It returns how many existed.
func (c *BleveClient) DeleteIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, engerrors.New(engerrors.ErrCodeIndexWrite, "delete failed", ErrClosed)
	}

	found, err := c.existing(ctx, ids)
	if err != nil {
		return 0, err
	}
	if err := c.deleteBatch(ids); err != nil {
		return 0, err
	}
	return found, nil
}

// DeleteByQuery removes every document matching q, one page at a time.
func (c *BleveClient) DeleteByQuery(ctx context.Context, q *deletion.Query) (int, error) {
	if q == nil {
		return 0, nil
	}
	bq := compileQuery(q)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, engerrors.New(engerrors.ErrCodeIndexWrite, "delete by query failed", ErrClosed)
	}

	total := 0
	for {
		req := bleve.NewSearchRequestOptions(bq, deletePage, 0, false)
		res, err := c.index.SearchInContext(ctx, req)
		if err != nil {
			return total, engerrors.New(engerrors.ErrCodeIndexQuery, "delete by query search failed", err)
		}
		if len(res.Hits) == 0 {
			return total, nil
		}
		ids := make([]string, len(res.Hits))
		for i, hit := range res.Hits {
			ids[i] = hit.ID
		}
		if err := c.deleteBatch(ids); err != nil {
			return total, err
		}
		total += len(ids)
		if len(res.Hits) < deletePage {
			return total, nil
		}
	}
}

func (c *BleveClient) deleteBatch(ids []string) error {
	batch := c.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := c.index.Batch(batch); err != nil {
		return engerrors.New(engerrors.ErrCodeIndexWrite, "failed to delete documents", err)
	}
	return nil
}

// existing counts how many of ids are present.
func (c *BleveClient) existing(ctx context.Context, ids []string) (int, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids), len(ids), 0, false)
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, engerrors.New(engerrors.ErrCodeIndexQuery, "id lookup failed", err)
	}
	return int(res.Total), nil
}

// Get returns the stored fields of document id.
func (c *BleveClient) Get(ctx context.Context, id string) (map[string]any, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, engerrors.New(engerrors.ErrCodeIndexQuery, "get failed", ErrClosed)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{"*"}
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, false, engerrors.New(engerrors.ErrCodeIndexQuery, fmt.Sprintf("failed to get %s", id), err)
	}
	if len(res.Hits) == 0 {
		return nil, false, nil
	}
	return res.Hits[0].Fields, true, nil
}

// Close releases the index.
func (c *BleveClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.index != nil {
		return c.index.Close()
	}
	return nil
}

// compileQuery turns a deletion query into a bleve boolean query.
func compileQuery(q *deletion.Query) query.Query {
	bq := bleve.NewBooleanQuery()
	for _, cl := range q.Must {
		bq.AddMust(term(cl))
	}
	for _, cl := range q.Should {
		bq.AddShould(term(cl))
	}
	if len(q.Should) > 0 {
		need := q.MinShould
		if need < 1 {
			need = 1
		}
		bq.SetMinShould(float64(need))
	}
	return bq
}

func term(cl deletion.Clause) query.Query {
	tq := bleve.NewTermQuery(cl.Value)
	tq.SetField(cl.Field)
	return tq
}

var (
	_ IngestClient = (*BleveClient)(nil)
	_ QueryClient  = (*BleveClient)(nil)
)
