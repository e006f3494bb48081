package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/events"
	"github.com/Aman-CERP/catindex/internal/jobs"
)

type step struct {
	Type jobs.Type
	Kind catalog.Kind
	Path string
}

func steps(js []jobs.Job) []step {
	out := make([]step, len(js))
	for i, j := range js {
		out[i] = step{j.Type, j.ItemKind, j.Path}
	}
	return out
}

func TestSubmit_DispatchTable(t *testing.T) {
	const (
		d = catalog.KindDataObject
		c = catalog.KindCollection
	)
	tests := []struct {
		name  string
		event events.Event
		want  []step
	}{
		{"added", events.ItemAdded{Zone: "z", Kind: d, Path: "/z/a"},
			[]step{{jobs.IndexItem, d, "/z/a"}}},
		{"changed", events.ItemChanged{Zone: "z", Kind: c, Path: "/z/c"},
			[]step{{jobs.IndexItem, c, "/z/c"}}},
		{"subtree added", events.SubtreeAdded{Zone: "z", Path: "/z/up"},
			[]step{{jobs.IndexItem, c, "/z/up"}, {jobs.IndexSubtree, c, "/z/up"}}},
		{"deleted", events.ItemDeleted{Zone: "z", Kind: d, Path: "/z/a"},
			[]step{{jobs.DeleteItem, d, "/z/a"}}},
		{"trashed", events.ItemTrashed{Zone: "z", Kind: c, Path: "/z/c"},
			[]step{{jobs.DeleteItem, c, "/z/c"}}},
		{"moved object", events.ItemMoved{Zone: "z", Kind: d, OldPath: "/z/a", NewPath: "/z/b"},
			[]step{{jobs.DeleteItem, d, "/z/a"}, {jobs.IndexItem, d, "/z/b"}}},
		{"renamed object", events.ItemRenamed{Zone: "z", Kind: d, OldPath: "/z/a", NewPath: "/z/b"},
			[]step{{jobs.DeleteItem, d, "/z/a"}, {jobs.IndexItem, d, "/z/b"}}},
		{"moved collection", events.ItemMoved{Zone: "z", Kind: c, OldPath: "/z/home/alice/old", NewPath: "/z/home/alice/new"},
			[]step{
				{jobs.DeleteSubtree, c, "/z/home/alice/old"},
				{jobs.IndexItem, c, "/z/home/alice/new"},
				{jobs.IndexSubtree, c, "/z/home/alice/new"},
			}},
		{"renamed collection", events.ItemRenamed{Zone: "z", Kind: c, OldPath: "/z/x", NewPath: "/z/y"},
			[]step{{jobs.DeleteSubtree, c, "/z/x"}, {jobs.IndexItem, c, "/z/y"}, {jobs.IndexSubtree, c, "/z/y"}}},
		{"copied", events.ItemCopied{Zone: "z", Kind: d, SourcePath: "/z/a", NewPath: "/z/b"},
			[]step{{jobs.IndexItem, d, "/z/b"}}},
		{"permissions recursive", events.PermissionsChanged{Zone: "z", Kind: c, Path: "/z/c", Recursive: true},
			[]step{{jobs.IndexItem, c, "/z/c"}, {jobs.IndexSubtree, c, "/z/c"}}},
		{"permissions with known kind", events.PermissionsChanged{Zone: "z", Kind: c, Path: "/z/c"},
			[]step{{jobs.IndexItem, c, "/z/c"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := jobs.NewQueue()
			s := New(q, Options{})

			got := s.Submit(context.Background(), tt.event)

			assert.Equal(t, tt.want, steps(got))
			assert.Equal(t, len(tt.want), q.Len())
			for _, j := range got {
				assert.Equal(t, "z", j.Zone)
				assert.NotEmpty(t, j.ID)
			}
		})
	}
}

func TestSubmit_MoveOrdering(t *testing.T) {
	// Given a collection move
	q := jobs.NewQueue()
	s := New(q, Options{})
	s.Submit(context.Background(), events.ItemMoved{
		Zone: "z", Kind: catalog.KindCollection,
		OldPath: "/z/home/alice/old", NewPath: "/z/home/alice/new",
	})

	// When the queue is drained
	var order []jobs.Type
	for {
		j, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, j.Type)
	}

	// Then the delete comes strictly before the reindex pair
	assert.Equal(t, []jobs.Type{jobs.DeleteSubtree, jobs.IndexItem, jobs.IndexSubtree}, order)
}

func TestSubmit_PermissionsWithoutKindLeavesKindUnresolved(t *testing.T) {
	// Given a non-recursive permission change that names no kind
	q := jobs.NewQueue()
	s := New(q, Options{})

	// When it is submitted
	got := s.Submit(context.Background(), events.PermissionsChanged{Zone: "z", Path: "/z/coll"})

	// Then one index_item is queued and its kind is left to the worker
	require.Len(t, got, 1)
	assert.Equal(t, jobs.IndexItem, got[0].Type)
	assert.Equal(t, "/z/coll", got[0].Path)
	assert.Empty(t, got[0].ItemKind)
	assert.Equal(t, 1, q.Len())
}

func TestSubmit_ConcurrentProducers(t *testing.T) {
	// Given many producers submitting at once
	q := jobs.NewQueue()
	s := New(q, Options{})
	const producers, perProducer = 16, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				s.Submit(context.Background(), events.SubtreeAdded{Zone: "z", Path: "/z/up"})
			}
		}()
	}
	wg.Wait()

	// Then no job is lost
	assert.Equal(t, producers*perProducer*2, q.Len())
}

func TestHandle_SubscribesToBus(t *testing.T) {
	q := jobs.NewQueue()
	s := New(q, Options{})
	bus := events.NewBus(nil, nil)
	bus.Subscribe(s.Handle, events.Names...)

	ok := bus.Publish(context.Background(), events.Envelope{
		Name:   "item-added",
		Fields: map[string]any{"kind": "data_object", "path": "/z/a"},
	})

	assert.True(t, ok)
	assert.Equal(t, 1, q.Len())
}
