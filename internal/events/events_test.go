package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/catindex/internal/catalog"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

func TestDecode_Variants(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		fields map[string]any
		want   Event
	}{
		{
			name:   "item added",
			event:  "item-added",
			fields: map[string]any{"kind": "data_object", "path": "/z/home/alice/a.txt"},
			want:   ItemAdded{Zone: "z", Kind: catalog.KindDataObject, Path: "/z/home/alice/a.txt"},
		},
		{
			name:   "underscore name and short kind",
			event:  "item_changed",
			fields: map[string]any{"kind": "c", "path": "/z/home/alice/"},
			want:   ItemChanged{Zone: "z", Kind: catalog.KindCollection, Path: "/z/home/alice"},
		},
		{
			name:   "trashed",
			event:  "item-trashed",
			fields: map[string]any{"zone": "z", "kind": "data_object", "path": "/z/a"},
			want:   ItemTrashed{Zone: "z", Kind: catalog.KindDataObject, Path: "/z/a"},
		},
		{
			name:  "moved",
			event: "item-moved",
			fields: map[string]any{
				"kind": "collection", "old_path": "/z/home/alice/old", "new_path": "/z/home/alice/new",
			},
			want: ItemMoved{Zone: "z", Kind: catalog.KindCollection, OldPath: "/z/home/alice/old", NewPath: "/z/home/alice/new"},
		},
		{
			name:   "copied without source",
			event:  "item-copied",
			fields: map[string]any{"kind": "data_object", "new_path": "/z/b"},
			want:   ItemCopied{Zone: "z", Kind: catalog.KindDataObject, NewPath: "/z/b"},
		},
		{
			name:   "subtree added",
			event:  "subtree-added",
			fields: map[string]any{"path": "/z/upload"},
			want:   SubtreeAdded{Zone: "z", Path: "/z/upload"},
		},
		{
			name:   "permissions without kind",
			event:  "permissions-changed",
			fields: map[string]any{"path": "/z/a", "recursive": "false"},
			want:   PermissionsChanged{Zone: "z", Path: "/z/a"},
		},
		{
			name:   "permissions recursive from cbor integer",
			event:  "permissions-changed",
			fields: map[string]any{"path": "/z/c", "kind": "collection", "recursive": uint64(1)},
			want:   PermissionsChanged{Zone: "z", Kind: catalog.KindCollection, Path: "/z/c", Recursive: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.event, tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		fields map[string]any
	}{
		{"unknown event", "item-exploded", map[string]any{"path": "/z/a"}},
		{"missing path", "item-added", map[string]any{"kind": "data_object"}},
		{"relative path", "item-added", map[string]any{"kind": "data_object", "path": "z/a"}},
		{"bad kind", "item-added", map[string]any{"kind": "folder", "path": "/z/a"}},
		{"missing kind", "item-deleted", map[string]any{"path": "/z/a"}},
		{"missing new path", "item-moved", map[string]any{"kind": "data_object", "old_path": "/z/a"}},
		{"zone mismatch", "item-added", map[string]any{"zone": "y", "kind": "data_object", "path": "/z/a"}},
		{"non string path", "item-added", map[string]any{"kind": "data_object", "path": 42}},
		{"bad recursive flag", "permissions-changed", map[string]any{"path": "/z/a", "recursive": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.event, tt.fields)
			require.Error(t, err)
			assert.Nil(t, ev)
			assert.True(t, engerrors.HasCode(err, engerrors.ErrCodeInvalidEvent))
		})
	}
}

func TestFields_RoundTrip(t *testing.T) {
	// Given every event variant
	evs := []Event{
		ItemAdded{Zone: "z", Kind: catalog.KindDataObject, Path: "/z/a"},
		ItemDeleted{Zone: "z", Kind: catalog.KindCollection, Path: "/z/c"},
		ItemRenamed{Zone: "z", Kind: catalog.KindDataObject, OldPath: "/z/a", NewPath: "/z/b"},
		ItemCopied{Zone: "z", Kind: catalog.KindDataObject, SourcePath: "/z/a", NewPath: "/z/b"},
		SubtreeAdded{Zone: "z", Path: "/z/c"},
		PermissionsChanged{Zone: "z", Kind: catalog.KindCollection, Path: "/z/c", Recursive: true},
	}

	for _, ev := range evs {
		// When rendered to fields and decoded again
		got, err := Decode(ev.Name(), Fields(ev))

		// Then the same event comes back
		require.NoError(t, err, ev.Name())
		assert.Equal(t, ev, got)
	}
}

func TestEnvelope_CBOR(t *testing.T) {
	// Given an envelope for a move
	env := EnvelopeOf(ItemMoved{Zone: "z", Kind: catalog.KindCollection, OldPath: "/z/old", NewPath: "/z/new"})

	// When encoded and decoded as CBOR
	data, err := Marshal(env)
	require.NoError(t, err)
	var back Envelope
	require.NoError(t, Unmarshal(data, &back))

	// Then it decodes into the same typed event
	ev, err := back.Decode()
	require.NoError(t, err)
	assert.Equal(t, ItemMoved{Zone: "z", Kind: catalog.KindCollection, OldPath: "/z/old", NewPath: "/z/new"}, ev)
}

func TestMarshal_Deterministic(t *testing.T) {
	env := Envelope{Name: "item-added", Fields: map[string]any{"path": "/z/a", "kind": "d", "zone": "z"}}

	a, err := Marshal(env)
	require.NoError(t, err)
	b, err := Marshal(env)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}
