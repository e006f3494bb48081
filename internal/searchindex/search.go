package searchindex

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/document"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// Search limits.
const (
	DefaultLimit = 20
	MaxLimit     = 10000
)

// Request is an interactive search.
type Request struct {
	// Zone restricts hits to one zone. Empty searches every zone.
	Zone string `json:"zone,omitempty"`
	// Text is matched fuzzily against the free-text field. Empty matches
	// everything.
	Text string `json:"text,omitempty"`
	// Under restricts hits to a collection and its descendants.
	Under string `json:"under,omitempty"`
	// Users and Groups filter by read access. When both are empty no
	// access filter is applied.
	Users  []string `json:"users,omitempty"`
	Groups []string `json:"groups,omitempty"`
	Kind   string   `json:"kind,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
}

// Hit is one search result.
type Hit struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
	Zone  string  `json:"zone"`
	Kind  string  `json:"kind"`
	Path  string  `json:"path"`
	Name  string  `json:"name"`
}

// Response is a page of hits.
type Response struct {
	Total uint64 `json:"total"`
	Hits  []Hit  `json:"hits"`
}

func (r Request) limit() int {
	switch {
	case r.Limit <= 0:
		return DefaultLimit
	case r.Limit > MaxLimit:
		return MaxLimit
	default:
		return r.Limit
	}
}

// compile builds the bleve query for r.
func (r Request) compile() query.Query {
	var must []query.Query

	if r.Zone != "" {
		must = append(must, termQuery(document.FieldZone, r.Zone))
	}
	if r.Kind != "" {
		must = append(must, termQuery(document.FieldKind, r.Kind))
	}
	if text := strings.TrimSpace(r.Text); text != "" {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(document.FieldFreeText)
		mq.SetFuzziness(1)
		must = append(must, mq)
	}
	if r.Under != "" {
		under := catalog.Clean(r.Under)
		must = append(must, bleve.NewDisjunctionQuery(
			termQuery(document.FieldParentPaths, under),
			termQuery(document.FieldPath, under),
		))
	}
	if len(r.Users)+len(r.Groups) > 0 {
		var readers []query.Query
		for _, u := range r.Users {
			readers = append(readers, termQuery(document.FieldReadersUsers, u))
		}
		for _, g := range r.Groups {
			readers = append(readers, termQuery(document.FieldReadersGroups, g))
		}
		must = append(must, bleve.NewDisjunctionQuery(readers...))
	}

	if len(must) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(must...)
}

func termQuery(field, value string) query.Query {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}

// Search runs r against the index.
func (c *BleveClient) Search(ctx context.Context, r Request) (*Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, engerrors.New(engerrors.ErrCodeIndexQuery, "search failed", ErrClosed)
	}

	req := bleve.NewSearchRequestOptions(r.compile(), r.limit(), r.Offset, false)
	req.Fields = []string{document.FieldZone, document.FieldKind, document.FieldPath, document.FieldName}
	req.SortBy([]string{"-_score", document.FieldPath})

	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeIndexQuery, "search failed", err)
	}

	out := &Response{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, Hit{
			DocID: h.ID,
			Score: h.Score,
			Zone:  stringField(h.Fields, document.FieldZone),
			Kind:  stringField(h.Fields, document.FieldKind),
			Path:  stringField(h.Fields, document.FieldPath),
			Name:  stringField(h.Fields, document.FieldName),
		})
	}
	return out, nil
}

// Count returns how many documents match r.
func (c *BleveClient) Count(ctx context.Context, r Request) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, engerrors.New(engerrors.ErrCodeIndexQuery, "count failed", ErrClosed)
	}

	req := bleve.NewSearchRequestOptions(r.compile(), 0, 0, false)
	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, engerrors.New(engerrors.ErrCodeIndexQuery, "count failed", err)
	}
	return res.Total, nil
}

func stringField(fields map[string]any, name string) string {
	if s, ok := fields[name].(string); ok {
		return s
	}
	return ""
}
