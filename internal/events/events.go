// Package events defines the catalog mutation events the engine reacts to.
//
// Each event kind is its own type carrying exactly the fields it needs.
// Events arrive by name with keyword fields (from the events socket or the
// admin surface) and are decoded into these types; unknown or malformed
// events are rejected with ErrCodeInvalidEvent.
package events

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Aman-CERP/catindex/internal/catalog"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
)

// Event names.
const (
	NameItemAdded          = "item-added"
	NameItemChanged        = "item-changed"
	NameItemDeleted        = "item-deleted"
	NameItemTrashed        = "item-trashed"
	NameItemMoved          = "item-moved"
	NameItemRenamed        = "item-renamed"
	NameItemCopied         = "item-copied"
	NameSubtreeAdded       = "subtree-added"
	NamePermissionsChanged = "permissions-changed"
)

// Names lists every event name the engine subscribes to.
var Names = []string{
	NameItemAdded, NameItemChanged, NameItemDeleted, NameItemTrashed,
	NameItemMoved, NameItemRenamed, NameItemCopied, NameSubtreeAdded,
	NamePermissionsChanged,
}

// Event is a catalog mutation. The set of implementations is closed.
type Event interface {
	// Name returns the event name.
	Name() string
	// ZoneName returns the zone the event happened in.
	ZoneName() string
	event()
}

// ItemAdded reports a new item.
type ItemAdded struct {
	Zone string
	Kind catalog.Kind
	Path string
}

// ItemChanged reports changed metadata or content of an item.
type ItemChanged struct {
	Zone string
	Kind catalog.Kind
	Path string
}

// ItemDeleted reports a permanently removed item.
type ItemDeleted struct {
	Zone string
	Kind catalog.Kind
	Path string
}

// ItemTrashed reports an item moved to the trash.
type ItemTrashed struct {
	Zone string
	Kind catalog.Kind
	Path string
}

// ItemMoved reports an item moved to a new collection.
type ItemMoved struct {
	Zone    string
	Kind    catalog.Kind
	OldPath string
	NewPath string
}

// ItemRenamed reports an item renamed in place.
type ItemRenamed struct {
	Zone    string
	Kind    catalog.Kind
	OldPath string
	NewPath string
}

// ItemCopied reports a copy created at NewPath.
type ItemCopied struct {
	Zone       string
	Kind       catalog.Kind
	SourcePath string
	NewPath    string
}

// SubtreeAdded reports a collection added together with its contents,
// such as a bulk upload.
type SubtreeAdded struct {
	Zone string
	Path string
}

// PermissionsChanged reports an ACL change. Kind may be empty when the
// producer does not know it.
type PermissionsChanged struct {
	Zone      string
	Kind      catalog.Kind
	Path      string
	Recursive bool
}

func (ItemAdded) Name() string          { return NameItemAdded }
func (ItemChanged) Name() string        { return NameItemChanged }
func (ItemDeleted) Name() string        { return NameItemDeleted }
func (ItemTrashed) Name() string        { return NameItemTrashed }
func (ItemMoved) Name() string          { return NameItemMoved }
func (ItemRenamed) Name() string        { return NameItemRenamed }
func (ItemCopied) Name() string         { return NameItemCopied }
func (SubtreeAdded) Name() string       { return NameSubtreeAdded }
func (PermissionsChanged) Name() string { return NamePermissionsChanged }

func (e ItemAdded) ZoneName() string          { return e.Zone }
func (e ItemChanged) ZoneName() string        { return e.Zone }
func (e ItemDeleted) ZoneName() string        { return e.Zone }
func (e ItemTrashed) ZoneName() string        { return e.Zone }
func (e ItemMoved) ZoneName() string          { return e.Zone }
func (e ItemRenamed) ZoneName() string        { return e.Zone }
func (e ItemCopied) ZoneName() string         { return e.Zone }
func (e SubtreeAdded) ZoneName() string       { return e.Zone }
func (e PermissionsChanged) ZoneName() string { return e.Zone }

func (ItemAdded) event()          {}
func (ItemChanged) event()        {}
func (ItemDeleted) event()        {}
func (ItemTrashed) event()        {}
func (ItemMoved) event()          {}
func (ItemRenamed) event()        {}
func (ItemCopied) event()         {}
func (SubtreeAdded) event()       {}
func (PermissionsChanged) event() {}

// Field keys accepted by Decode.
const (
	FieldZone       = "zone"
	FieldKind       = "kind"
	FieldPath       = "path"
	FieldOldPath    = "old_path"
	FieldNewPath    = "new_path"
	FieldSourcePath = "source_path"
	FieldRecursive  = "recursive"
)

// NormalizeName maps "item_added" and "ITEM-ADDED" to "item-added".
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

// Decode builds the event named name from keyword fields.
func Decode(name string, fields map[string]any) (Event, error) {
	f := fieldReader{name: NormalizeName(name), fields: fields}

	var ev Event
	switch f.name {
	case NameItemAdded:
		ev = ItemAdded{Kind: f.kind(), Path: f.path(FieldPath)}
	case NameItemChanged:
		ev = ItemChanged{Kind: f.kind(), Path: f.path(FieldPath)}
	case NameItemDeleted:
		ev = ItemDeleted{Kind: f.kind(), Path: f.path(FieldPath)}
	case NameItemTrashed:
		ev = ItemTrashed{Kind: f.kind(), Path: f.path(FieldPath)}
	case NameItemMoved:
		ev = ItemMoved{Kind: f.kind(), OldPath: f.path(FieldOldPath), NewPath: f.path(FieldNewPath)}
	case NameItemRenamed:
		ev = ItemRenamed{Kind: f.kind(), OldPath: f.path(FieldOldPath), NewPath: f.path(FieldNewPath)}
	case NameItemCopied:
		ev = ItemCopied{Kind: f.kind(), SourcePath: f.optionalPath(FieldSourcePath), NewPath: f.path(FieldNewPath)}
	case NameSubtreeAdded:
		ev = SubtreeAdded{Path: f.path(FieldPath)}
	case NamePermissionsChanged:
		ev = PermissionsChanged{Kind: f.optionalKind(), Path: f.path(FieldPath), Recursive: f.boolean(FieldRecursive)}
	default:
		return nil, engerrors.Newf(engerrors.ErrCodeInvalidEvent, "unknown event %q", name)
	}
	zone := f.zone(ev)
	if f.err != nil {
		return nil, f.err
	}
	if zone == "" {
		return nil, engerrors.Newf(engerrors.ErrCodeInvalidEvent, "%s: cannot determine zone", f.name)
	}
	return withZone(ev, zone), nil
}

// withZone fills in the zone of ev.
func withZone(ev Event, zone string) Event {
	switch e := ev.(type) {
	case ItemAdded:
		e.Zone = zone
		return e
	case ItemChanged:
		e.Zone = zone
		return e
	case ItemDeleted:
		e.Zone = zone
		return e
	case ItemTrashed:
		e.Zone = zone
		return e
	case ItemMoved:
		e.Zone = zone
		return e
	case ItemRenamed:
		e.Zone = zone
		return e
	case ItemCopied:
		e.Zone = zone
		return e
	case SubtreeAdded:
		e.Zone = zone
		return e
	case PermissionsChanged:
		e.Zone = zone
		return e
	}
	return ev
}

// primaryPath is the path that determines an event's zone.
func primaryPath(ev Event) string {
	switch e := ev.(type) {
	case ItemAdded:
		return e.Path
	case ItemChanged:
		return e.Path
	case ItemDeleted:
		return e.Path
	case ItemTrashed:
		return e.Path
	case ItemMoved:
		return e.NewPath
	case ItemRenamed:
		return e.NewPath
	case ItemCopied:
		return e.NewPath
	case SubtreeAdded:
		return e.Path
	case PermissionsChanged:
		return e.Path
	}
	return ""
}

// Fields renders ev back into keyword fields, the inverse of Decode.
func Fields(ev Event) map[string]any {
	m := map[string]any{FieldZone: ev.ZoneName()}
	switch e := ev.(type) {
	case ItemAdded:
		m[FieldKind], m[FieldPath] = string(e.Kind), e.Path
	case ItemChanged:
		m[FieldKind], m[FieldPath] = string(e.Kind), e.Path
	case ItemDeleted:
		m[FieldKind], m[FieldPath] = string(e.Kind), e.Path
	case ItemTrashed:
		m[FieldKind], m[FieldPath] = string(e.Kind), e.Path
	case ItemMoved:
		m[FieldKind], m[FieldOldPath], m[FieldNewPath] = string(e.Kind), e.OldPath, e.NewPath
	case ItemRenamed:
		m[FieldKind], m[FieldOldPath], m[FieldNewPath] = string(e.Kind), e.OldPath, e.NewPath
	case ItemCopied:
		m[FieldKind], m[FieldNewPath] = string(e.Kind), e.NewPath
		if e.SourcePath != "" {
			m[FieldSourcePath] = e.SourcePath
		}
	case SubtreeAdded:
		m[FieldPath] = e.Path
	case PermissionsChanged:
		m[FieldPath], m[FieldRecursive] = e.Path, e.Recursive
		if e.Kind != "" {
			m[FieldKind] = string(e.Kind)
		}
	}
	return m
}

// fieldReader extracts typed fields and remembers the first error.
type fieldReader struct {
	name   string
	fields map[string]any
	err    error
}

func (f *fieldReader) fail(format string, args ...any) {
	if f.err == nil {
		f.err = engerrors.New(engerrors.ErrCodeInvalidEvent,
			fmt.Sprintf("%s: %s", f.name, fmt.Sprintf(format, args...)), nil).
			WithDetail("event", f.name)
	}
}

func (f *fieldReader) str(key string) (string, bool) {
	v, ok := f.fields[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case []byte:
		return string(s), len(s) > 0
	default:
		f.fail("field %s must be a string, got %T", key, v)
		return "", false
	}
}

func (f *fieldReader) path(key string) string {
	s, ok := f.str(key)
	if !ok {
		f.fail("missing field %s", key)
		return ""
	}
	if !strings.HasPrefix(s, "/") {
		f.fail("field %s must be an absolute path, got %q", key, s)
		return ""
	}
	return catalog.Clean(s)
}

func (f *fieldReader) optionalPath(key string) string {
	if _, ok := f.fields[key]; !ok {
		return ""
	}
	return f.path(key)
}

func (f *fieldReader) kind() catalog.Kind {
	s, ok := f.str(FieldKind)
	if !ok {
		f.fail("missing field %s", FieldKind)
		return ""
	}
	k, err := catalog.ParseKind(s)
	if err != nil {
		f.fail("%v", err)
	}
	return k
}

func (f *fieldReader) optionalKind() catalog.Kind {
	if _, ok := f.str(FieldKind); !ok {
		return ""
	}
	return f.kind()
}

func (f *fieldReader) boolean(key string) bool {
	switch v := f.fields[key].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			f.fail("field %s must be a boolean, got %q", key, v)
		}
		return b
	case int64:
		return v != 0
	case uint64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	default:
		f.fail("field %s must be a boolean, got %T", key, v)
		return false
	}
}

// zone returns the explicit zone field or the zone named by the event's
// path, which must agree.
func (f *fieldReader) zone(ev Event) string {
	fromPath := catalog.ZoneOf(primaryPath(ev))
	z, ok := f.str(FieldZone)
	if !ok {
		return fromPath
	}
	if fromPath != "" && z != fromPath {
		f.fail("zone %q does not match path zone %q", z, fromPath)
	}
	return z
}
