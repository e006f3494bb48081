// Package document turns catalog items into search index documents.
//
// A document carries the item's system fields, its metadata split into
// core, schema and other namespaces, flattened reader-id arrays for access
// filtering, root-first parent arrays for subtree queries, and a free-text
// aggregation field. Its id is derived from zone, kind and numeric id, so
// indexing the same item twice overwrites rather than duplicates.
package document

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Aman-CERP/catindex/internal/catalog"
)

// Index field names shared with the deletion planner and the search index.
const (
	FieldDocID         = "doc_id"
	FieldZone          = "zone"
	FieldKind          = "kind"
	FieldKindCode      = "kind_code"
	FieldItemID        = "item_id"
	FieldPath          = "path"
	FieldName          = "name"
	FieldOwner         = "owner"
	FieldSize          = "size"
	FieldCreated       = "created"
	FieldModified      = "modified"
	FieldIndexedAt     = "indexed_at"
	FieldMetadata      = "metadata"
	FieldFreeText      = "freetext"
	FieldReadersUsers  = "readers_users"
	FieldReadersGroups = "readers_groups"
	FieldParentIDs     = "parent_ids"
	FieldParentPaths   = "parent_paths"
)

// Metadata namespace keys inside the metadata object.
const (
	NamespaceCore   = "core"
	NamespaceSchema = "schema"
)

// Document is the search side projection of a catalog item.
type Document struct {
	DocID    string `json:"doc_id"`
	Zone     string `json:"zone"`
	Kind     string `json:"kind"`
	KindCode string `json:"kind_code"`
	ItemID   int64  `json:"item_id"`
	Path     string `json:"path"`
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	// Size is nil for collections.
	Size      *int64    `json:"size,omitempty"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
	IndexedAt time.Time `json:"indexed_at"`

	// Metadata holds "core" and "schema" sub-objects plus normalized
	// unnamespaced fields at top level.
	Metadata map[string]any `json:"metadata"`
	FreeText string         `json:"freetext"`

	ReadersUsers  []string `json:"readers_users"`
	ReadersGroups []string `json:"readers_groups"`

	// ParentIDs and ParentPaths are ordered root first.
	ParentIDs   []string `json:"parent_ids"`
	ParentPaths []string `json:"parent_paths"`
}

// DocID returns the deterministic document id {zone}_{kind}_{id}.
func DocID(zone string, kind catalog.Kind, id int64) string {
	return fmt.Sprintf("%s_%s_%d", zone, kind, id)
}

// FormatID renders a numeric id the way parent_ids stores it.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Fields returns the document as the generic map the index stores.
func (d *Document) Fields() map[string]any {
	m := map[string]any{
		FieldDocID:         d.DocID,
		FieldZone:          d.Zone,
		FieldKind:          d.Kind,
		FieldKindCode:      d.KindCode,
		FieldItemID:        float64(d.ItemID),
		FieldPath:          d.Path,
		FieldName:          d.Name,
		FieldOwner:         d.Owner,
		FieldCreated:       d.Created,
		FieldModified:      d.Modified,
		FieldIndexedAt:     d.IndexedAt,
		FieldMetadata:      d.Metadata,
		FieldFreeText:      d.FreeText,
		FieldReadersUsers:  d.ReadersUsers,
		FieldReadersGroups: d.ReadersGroups,
		FieldParentIDs:     d.ParentIDs,
		FieldParentPaths:   d.ParentPaths,
	}
	if d.Size != nil {
		m[FieldSize] = float64(*d.Size)
	}
	return m
}
