package searchindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/deletion"
	"github.com/Aman-CERP/catindex/internal/document"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// doc builds a document for path with root-first parent paths and ids
// derived from the path depth.
func doc(zone string, kind catalog.Kind, id int64, path, freetext string, readers ...string) *document.Document {
	ancestors := catalog.Ancestors(path)
	parents := make([]string, 0, len(ancestors))
	ids := make([]string, 0, len(ancestors))
	for i := len(ancestors) - 1; i >= 0; i-- {
		parents = append(parents, ancestors[i])
		ids = append(ids, document.FormatID(int64(1000+len(ancestors[i]))))
	}
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &document.Document{
		DocID:        document.DocID(zone, kind, id),
		Zone:         zone,
		Kind:         string(kind),
		KindCode:     kind.Code(),
		ItemID:       id,
		Path:         path,
		Name:         catalog.Base(path),
		Owner:        "rods",
		Created:      ts,
		Modified:     ts,
		IndexedAt:    ts,
		Metadata:     map[string]any{"project": "P1", "core": map[string]any{"author": "alice"}},
		FreeText:     freetext,
		ReadersUsers: readers,
		ParentIDs:    ids,
		ParentPaths:  parents,
	}
}

func newMemClient(t *testing.T) *BleveClient {
	t.Helper()
	c, err := OpenBleve("", DefaultMapping(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func put(t *testing.T, c *BleveClient, docs ...*document.Document) {
	t.Helper()
	batch := make(map[string]map[string]any, len(docs))
	for _, d := range docs {
		batch[d.DocID] = d.Fields()
	}
	require.NoError(t, c.BulkUpsert(context.Background(), batch))
}

func paths(t *testing.T, c *BleveClient, r Request) []string {
	t.Helper()
	r.Limit = MaxLimit
	res, err := c.Search(context.Background(), r)
	require.NoError(t, err)
	out := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.Path)
	}
	return out
}

func TestUpsert_SameIDOverwrites(t *testing.T) {
	c := newMemClient(t)
	ctx := context.Background()

	// Given the same item indexed twice with different free text
	d := doc("z", catalog.KindDataObject, 7, "/z/home/alice/a.txt", "first")
	require.NoError(t, c.Upsert(ctx, d.DocID, d.Fields()))
	d.FreeText = "second"
	require.NoError(t, c.Upsert(ctx, d.DocID, d.Fields()))

	// Then there is exactly one document with the latest content
	n, err := c.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	fields, ok, err := c.Get(ctx, "z_data_object_7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", fields[document.FieldFreeText])
	assert.Equal(t, "/z/home/alice/a.txt", fields[document.FieldPath])
}

func TestGet_Missing(t *testing.T) {
	c := newMemClient(t)

	_, ok, err := c.Get(context.Background(), "z_collection_1")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteIDs(t *testing.T) {
	c := newMemClient(t)
	put(t, c,
		doc("z", catalog.KindDataObject, 1, "/z/a", ""),
		doc("z", catalog.KindDataObject, 2, "/z/b", ""),
	)

	n, err := c.DeleteIDs(context.Background(), []string{"z_data_object_1", "z_data_object_99"})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"/z/b"}, paths(t, c, Request{Zone: "z"}))
}

func TestDeleteByQuery_SubtreeByPath(t *testing.T) {
	c := newMemClient(t)
	put(t, c,
		doc("z", catalog.KindCollection, 1, "/z/home/alice/old", ""),
		doc("z", catalog.KindDataObject, 2, "/z/home/alice/old/a.txt", ""),
		doc("z", catalog.KindCollection, 3, "/z/home/alice/old/sub", ""),
		doc("z", catalog.KindDataObject, 4, "/z/home/alice/old/sub/b.txt", ""),
		doc("z", catalog.KindCollection, 5, "/z/home/alice/older", ""),
		doc("z", catalog.KindDataObject, 6, "/z/home/alice/keep.txt", ""),
		doc("y", catalog.KindCollection, 7, "/y/home/alice/old", ""),
	)

	// When the subtree is deleted by path
	plan := deletion.SubtreeByPath("z", "/z/home/alice/old")
	n, err := c.DeleteByQuery(context.Background(), plan.Query)

	// Then the node and its descendants are gone, siblings and other zones stay
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.ElementsMatch(t, []string{"/z/home/alice/older", "/z/home/alice/keep.txt"}, paths(t, c, Request{Zone: "z"}))
	assert.Equal(t, []string{"/y/home/alice/old"}, paths(t, c, Request{Zone: "y"}))

	res, err := c.Search(context.Background(), Request{Zone: "z", Under: "/z/home/alice/old"})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestDeleteByQuery_ItemByPath(t *testing.T) {
	c := newMemClient(t)
	put(t, c,
		doc("z", catalog.KindCollection, 1, "/z/c", ""),
		doc("z", catalog.KindDataObject, 2, "/z/c/a", ""),
	)

	n, err := c.DeleteByQuery(context.Background(), deletion.ItemByPath("z", "/z/c").Query)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"/z/c/a"}, paths(t, c, Request{Zone: "z"}))
}

func TestDeleteByQuery_ManyPages(t *testing.T) {
	c := newMemClient(t)
	docs := []*document.Document{doc("z", catalog.KindCollection, 1, "/z/big", "")}
	for i := int64(0); i < deletePage+250; i++ {
		docs = append(docs, doc("z", catalog.KindDataObject, 100+i, "/z/big/f"+document.FormatID(i), ""))
	}
	put(t, c, docs...)

	n, err := c.DeleteByQuery(context.Background(), deletion.SubtreeByPath("z", "/z/big").Query)

	require.NoError(t, err)
	assert.Equal(t, len(docs), n)
	count, err := c.DocCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearch_Filters(t *testing.T) {
	c := newMemClient(t)
	report := doc("z", catalog.KindDataObject, 1, "/z/home/alice/report.pdf", "report.pdf Annual Report", "alice")
	notes := doc("z", catalog.KindDataObject, 2, "/z/home/bob/notes.txt", "notes.txt meeting notes", "bob")
	notes.ReadersGroups = []string{"staff"}
	put(t, c, report, notes, doc("y", catalog.KindDataObject, 3, "/y/annual", "Annual", "alice"))

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{"text", Request{Zone: "z", Text: "annual"}, []string{"/z/home/alice/report.pdf"}},
		{"fuzzy text", Request{Zone: "z", Text: "anual"}, []string{"/z/home/alice/report.pdf"}},
		{"all zones", Request{Text: "annual"}, []string{"/y/annual", "/z/home/alice/report.pdf"}},
		{"under", Request{Zone: "z", Under: "/z/home/bob"}, []string{"/z/home/bob/notes.txt"}},
		{"user access", Request{Zone: "z", Users: []string{"alice"}}, []string{"/z/home/alice/report.pdf"}},
		{"group access", Request{Zone: "z", Users: []string{"carol"}, Groups: []string{"staff"}}, []string{"/z/home/bob/notes.txt"}},
		{"no access", Request{Zone: "z", Users: []string{"carol"}}, []string{}},
		{"kind", Request{Zone: "z", Kind: "collection"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, paths(t, c, tt.req))
		})
	}
}

func TestCount(t *testing.T) {
	c := newMemClient(t)
	put(t, c,
		doc("z", catalog.KindDataObject, 1, "/z/a", ""),
		doc("z", catalog.KindDataObject, 2, "/z/b", ""),
		doc("y", catalog.KindDataObject, 3, "/y/c", ""),
	)

	n, err := c.Count(context.Background(), Request{Zone: "z"})

	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestClosedClient(t *testing.T) {
	c, err := OpenBleve("", DefaultMapping(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err = c.Upsert(context.Background(), "x", map[string]any{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, engerrors.HasCode(err, engerrors.ErrCodeIndexWrite))

	_, err = c.Search(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDiskIndex_ReopenKeepsDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx")
	c, err := OpenBleve(path, DefaultMapping(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	put(t, c, doc("z", catalog.KindDataObject, 1, "/z/a", "hello"))

	require.NoError(t, c.Reopen())

	n, err := c.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}
