package document

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/catindex/internal/catalog"
)

// Metadata name prefixes that select a namespace.
const (
	CorePrefix   = "mg."
	SchemaPrefix = "mgs."
)

// unitsSuffix is appended to a field name to hold its AVU unit.
const unitsSuffix = "_units"

// freeTextKeys are the substrings that pull a field into the free-text field.
var freeTextKeys = []string{"name", "title", "description", "comment", "summary"}

// Builder builds documents from catalog items.
type Builder struct {
	cache *PathIDCache
	now   func() time.Time
}

// NewBuilder creates a builder resolving parents through cache.
func NewBuilder(cache *PathIDCache) *Builder {
	if cache == nil {
		cache = NewPathIDCache(DefaultPathCacheSize)
	}
	return &Builder{cache: cache, now: time.Now}
}

// SetClock overrides the indexed_at source.
func (b *Builder) SetClock(now func() time.Time) {
	b.now = now
}

// Cache returns the builder's path id cache.
func (b *Builder) Cache() *PathIDCache {
	return b.cache
}

// Build reads item's metadata and ACLs through s and assembles its document.
func (b *Builder) Build(ctx context.Context, s catalog.Session, item catalog.Item) (*Document, error) {
	avus, err := s.Metadata(ctx, item)
	if err != nil {
		return nil, err
	}
	acls, err := s.ACLs(ctx, item)
	if err != nil {
		return nil, err
	}

	b.cache.Remember(item.Zone, item.Path, item.ID)
	parentIDs, parentPaths := b.parents(ctx, s, item)
	users, groups := Readers(acls)
	meta := BuildMetadata(avus)

	doc := &Document{
		DocID:         DocID(item.Zone, item.Kind, item.ID),
		Zone:          item.Zone,
		Kind:          item.Kind.String(),
		KindCode:      item.Kind.Code(),
		ItemID:        item.ID,
		Path:          item.Path,
		Name:          item.Name,
		Owner:         item.Owner,
		Created:       item.Created.UTC(),
		Modified:      item.Modified.UTC(),
		IndexedAt:     b.now().UTC(),
		Metadata:      meta,
		FreeText:      FreeText(item.Name, meta),
		ReadersUsers:  users,
		ReadersGroups: groups,
		ParentIDs:     parentIDs,
		ParentPaths:   parentPaths,
	}
	if item.Kind == catalog.KindDataObject {
		size := item.Size
		doc.Size = &size
	}
	return doc, nil
}

// parents walks up from item one segment at a time and returns root-first
// id and path arrays. The walk stops at the first unresolvable prefix.
func (b *Builder) parents(ctx context.Context, s catalog.Session, item catalog.Item) ([]string, []string) {
	ancestors := catalog.Ancestors(item.Path)
	ids := make([]string, 0, len(ancestors))
	paths := make([]string, 0, len(ancestors))

	for _, p := range ancestors {
		id, err := b.cache.Resolve(ctx, s, item.Zone, p)
		if err != nil {
			break
		}
		ids = append(ids, FormatID(id))
		paths = append(paths, p)
	}

	reverse(ids)
	reverse(paths)
	return ids, paths
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// Readers splits read-capable ACL principals by kind. Results are sorted
// and free of duplicates.
func Readers(acls []catalog.ACL) (users, groups []string) {
	seenU := make(map[string]bool)
	seenG := make(map[string]bool)
	users, groups = []string{}, []string{}

	for _, acl := range acls {
		if !acl.Access.CanRead() || acl.PrincipalID == "" {
			continue
		}
		switch acl.Kind {
		case catalog.PrincipalIndividual:
			if !seenU[acl.PrincipalID] {
				seenU[acl.PrincipalID] = true
				users = append(users, acl.PrincipalID)
			}
		case catalog.PrincipalGroup:
			if !seenG[acl.PrincipalID] {
				seenG[acl.PrincipalID] = true
				groups = append(groups, acl.PrincipalID)
			}
		}
	}
	sort.Strings(users)
	sort.Strings(groups)
	return users, groups
}

// NormalizeKey lowercases name and replaces every run of characters
// outside [a-z0-9_] with a single underscore.
func NormalizeKey(name string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return strings.Trim(sb.String(), "_")
}

// field accumulates the AVUs sharing one name.
type field struct {
	path   []string
	values []string
	units  []string
}

// splitName returns the namespace and key path of an AVU name.
func splitName(name string) (namespace string, path []string) {
	switch {
	case strings.HasPrefix(name, SchemaPrefix):
		namespace, name = NamespaceSchema, strings.TrimPrefix(name, SchemaPrefix)
	case strings.HasPrefix(name, CorePrefix):
		namespace, name = NamespaceCore, strings.TrimPrefix(name, CorePrefix)
	default:
		key := NormalizeKey(name)
		if key == "" {
			return "", nil
		}
		// An unnamespaced field may not shadow a namespace object.
		if key == NamespaceCore || key == NamespaceSchema {
			key = "other_" + key
		}
		return "", []string{key}
	}

	for _, seg := range strings.Split(name, ".") {
		if key := NormalizeKey(seg); key != "" {
			path = append(path, key)
		}
	}
	return namespace, path
}

// BuildMetadata partitions avus into the metadata object. Repeated names
// become arrays in catalog order; units go to <field>_units.
func BuildMetadata(avus []catalog.AVU) map[string]any {
	meta := map[string]any{
		NamespaceCore:   map[string]any{},
		NamespaceSchema: map[string]any{},
	}

	type fieldKey struct {
		namespace string
		path      string
	}
	fields := make(map[fieldKey]*field)
	var order []fieldKey

	for _, avu := range avus {
		ns, path := splitName(avu.Name)
		if len(path) == 0 {
			continue
		}
		k := fieldKey{namespace: ns, path: strings.Join(path, ".")}
		f, ok := fields[k]
		if !ok {
			f = &field{path: path}
			fields[k] = f
			order = append(order, k)
		}
		f.values = append(f.values, avu.Value)
		if avu.Unit != "" && !contains(f.units, avu.Unit) {
			f.units = append(f.units, avu.Unit)
		}
	}

	for _, k := range order {
		f := fields[k]
		target := meta
		if k.namespace != "" {
			target = meta[k.namespace].(map[string]any)
		}
		parent := descend(target, f.path[:len(f.path)-1])
		leaf := f.path[len(f.path)-1]

		setLeaf(parent, leaf, collapse(f.values))
		if len(f.units) > 0 {
			setLeaf(parent, leaf+unitsSuffix, collapse(f.units))
		}
	}
	return meta
}

// descend walks (creating as needed) nested objects along path. A scalar
// in the way is moved under "value" of the new object.
func descend(m map[string]any, path []string) map[string]any {
	for _, seg := range path {
		switch cur := m[seg].(type) {
		case map[string]any:
			m = cur
		case nil:
			next := map[string]any{}
			m[seg] = next
			m = next
		default:
			next := map[string]any{"value": cur}
			m[seg] = next
			m = next
		}
	}
	return m
}

// setLeaf stores v at key; if an object already occupies key, v goes to its
// "value" entry.
func setLeaf(m map[string]any, key string, v any) {
	if obj, ok := m[key].(map[string]any); ok {
		obj["value"] = v
		return
	}
	m[key] = v
}

func collapse(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	return append([]string(nil), values...)
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// FreeText joins name with the values of every metadata field whose key
// contains one of the free-text substrings. Fields are visited in sorted
// key order so the result is deterministic.
func FreeText(name string, meta map[string]any) string {
	parts := []string{}
	if name != "" {
		parts = append(parts, name)
	}
	collectFreeText(meta, &parts)
	return strings.Join(parts, " ")
}

func collectFreeText(m map[string]any, parts *[]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]any:
			if matchesFreeText(k) {
				if s, ok := v["value"]; ok {
					appendValues(s, parts)
				}
			}
			collectFreeText(v, parts)
		default:
			if matchesFreeText(k) {
				appendValues(v, parts)
			}
		}
	}
}

func matchesFreeText(key string) bool {
	if strings.HasSuffix(key, unitsSuffix) {
		return false
	}
	for _, sub := range freeTextKeys {
		if strings.Contains(key, sub) {
			return true
		}
	}
	return false
}

func appendValues(v any, parts *[]string) {
	switch val := v.(type) {
	case string:
		if val != "" {
			*parts = append(*parts, val)
		}
	case []string:
		for _, s := range val {
			if s != "" {
				*parts = append(*parts, s)
			}
		}
	}
}
