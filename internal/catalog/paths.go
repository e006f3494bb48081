package catalog

import (
	"path"
	"strings"
)

// Clean normalizes a catalog path: absolute, no trailing slash.
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// Parent returns the enclosing collection path, or "/" for a zone root.
func Parent(p string) string {
	return path.Dir(Clean(p))
}

// Base returns the last path segment.
func Base(p string) string {
	return path.Base(Clean(p))
}

// ZoneOf returns the zone named by the first path segment.
func ZoneOf(p string) string {
	p = strings.TrimPrefix(Clean(p), "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// ZoneRoot returns the root collection path of zone.
func ZoneRoot(zone string) string {
	return "/" + zone
}

// Ancestors returns the proper ancestors of p, nearest first, stopping at
// the zone root. Ancestors("/z/a/b") is ["/z/a", "/z"].
func Ancestors(p string) []string {
	p = Clean(p)
	var out []string
	for {
		parent := path.Dir(p)
		if parent == "/" || parent == p {
			return out
		}
		out = append(out, parent)
		p = parent
	}
}

// IsUnder reports whether p equals root or lies beneath it.
func IsUnder(p, root string) bool {
	p, root = Clean(p), Clean(root)
	if p == root {
		return true
	}
	if root == "/" {
		return true
	}
	return strings.HasPrefix(p, root+"/")
}
