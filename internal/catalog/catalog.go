// Package catalog models the hierarchical data catalog the engine indexes.
//
// The engine never writes to the catalog. It reads items, their metadata
// and their access-control entries through a Session leased for a zone.
package catalog

import (
	"context"
	"fmt"
	"time"
)

// Kind distinguishes collections from data objects.
type Kind string

const (
	// KindCollection is a directory-like container.
	KindCollection Kind = "collection"
	// KindDataObject is a file-like leaf.
	KindDataObject Kind = "data_object"
)

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Code returns the one-letter kind code used by the search document.
func (k Kind) Code() string {
	switch k {
	case KindCollection:
		return "c"
	case KindDataObject:
		return "d"
	default:
		return ""
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindCollection || k == KindDataObject
}

// ParseKind accepts the kind name or its one-letter code.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "collection", "c", "coll":
		return KindCollection, nil
	case "data_object", "d", "data", "object", "dataobject":
		return KindDataObject, nil
	default:
		return "", fmt.Errorf("unknown item kind %q", s)
	}
}

// Item is a collection or data object as seen at read time.
type Item struct {
	Zone     string    `json:"zone"`
	ID       int64     `json:"id"`
	Kind     Kind      `json:"kind"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Owner    string    `json:"owner"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
	// Size is set for data objects only.
	Size int64 `json:"size,omitempty"`
}

// ParentPath returns the path of the enclosing collection.
func (i Item) ParentPath() string {
	return Parent(i.Path)
}

// AVU is one attribute/value/unit metadata triple.
type AVU struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// PrincipalKind is the kind of an ACL principal.
type PrincipalKind string

const (
	PrincipalIndividual PrincipalKind = "individual"
	PrincipalGroup      PrincipalKind = "group"
)

// Access is an ACL access level. Levels are ordered.
type Access int

const (
	AccessNone Access = iota
	AccessRead
	AccessWrite
	AccessOwn
)

// CanRead reports whether the level grants read access.
func (a Access) CanRead() bool {
	return a >= AccessRead
}

// String returns the access level name.
func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessOwn:
		return "own"
	default:
		return "null"
	}
}

// ParseAccess converts a catalog access name into a level.
// Unknown names map to AccessNone.
func ParseAccess(s string) Access {
	switch s {
	case "read", "read_object", "read object", "read_metadata":
		return AccessRead
	case "write", "modify_object", "modify object":
		return AccessWrite
	case "own":
		return AccessOwn
	default:
		return AccessNone
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Access) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Access) UnmarshalText(b []byte) error {
	*a = ParseAccess(string(b))
	return nil
}

// ACL is one access-control entry on an item.
type ACL struct {
	PrincipalID   string        `json:"principal_id"`
	PrincipalName string        `json:"principal_name,omitempty"`
	Kind          PrincipalKind `json:"kind"`
	Access        Access        `json:"access"`
}

// Session reads catalog state for one zone.
type Session interface {
	// Stat resolves path to an item.
	Stat(ctx context.Context, path string) (Item, error)
	// Metadata returns the item's AVUs in catalog order.
	Metadata(ctx context.Context, item Item) ([]AVU, error)
	// ACLs returns the item's access-control entries.
	ACLs(ctx context.Context, item Item) ([]ACL, error)
	// Children lists the direct children of a collection.
	Children(ctx context.Context, collection string) ([]Item, error)
	// Ping probes the zone root. A failing probe invalidates the session.
	Ping(ctx context.Context) error
	// Close releases the session.
	Close() error
}

// Releaser is implemented by sessions handed to a single caller, who must
// give them back once its work is done.
type Releaser interface {
	Release()
}

// Release gives back a session obtained from a lease. Shared sessions are
// left open.
func Release(s Session) {
	if r, ok := s.(Releaser); ok {
		r.Release()
	}
}
