// Package deletion plans removals from the search index.
//
// Plans are pure data: a list of document ids to delete outright and an
// optional boolean query whose every match is deleted. The search index
// executes them.
package deletion

import (
	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/document"
)

// Clause is an exact term match on one field.
type Clause struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Query matches documents satisfying every Must clause and at least
// MinShould of the Should clauses.
type Query struct {
	Must      []Clause `json:"must,omitempty"`
	Should    []Clause `json:"should,omitempty"`
	MinShould int      `json:"min_should,omitempty"`
}

// Plan is a set of deletions to run together.
type Plan struct {
	DocIDs []string `json:"doc_ids,omitempty"`
	Query  *Query   `json:"query,omitempty"`
}

// Empty reports whether the plan deletes nothing.
func (p Plan) Empty() bool {
	return len(p.DocIDs) == 0 && p.Query == nil
}

// Item deletes one document by its deterministic id.
func Item(zone string, id int64, kind catalog.Kind) Plan {
	return Plan{DocIDs: []string{document.DocID(zone, kind, id)}}
}

// ItemByPath deletes the document whose path equals path within zone.
// Used when the catalog item is already gone and its id is unknown.
func ItemByPath(zone, path string) Plan {
	return Plan{Query: &Query{
		Must: []Clause{
			{Field: document.FieldZone, Value: zone},
			{Field: document.FieldPath, Value: catalog.Clean(path)},
		},
	}}
}

// SubtreeByPath deletes the node at path and every document listing path
// among its parents, within zone.
func SubtreeByPath(zone, path string) Plan {
	path = catalog.Clean(path)
	return Plan{Query: &Query{
		Must: []Clause{{Field: document.FieldZone, Value: zone}},
		Should: []Clause{
			{Field: document.FieldParentPaths, Value: path},
			{Field: document.FieldPath, Value: path},
		},
		MinShould: 1,
	}}
}

// SubtreeByID deletes every descendant of the collection with id and the
// collection itself.
func SubtreeByID(zone string, id int64) Plan {
	return Plan{
		DocIDs: []string{document.DocID(zone, catalog.KindCollection, id)},
		Query: &Query{
			Must:      []Clause{{Field: document.FieldZone, Value: zone}},
			Should:    []Clause{{Field: document.FieldParentIDs, Value: document.FormatID(id)}},
			MinShould: 1,
		},
	}
}

// Matches evaluates q against a document's field values. It mirrors what
// the index executes and backs tests of plan semantics.
func (q *Query) Matches(fields map[string][]string) bool {
	for _, c := range q.Must {
		if !has(fields[c.Field], c.Value) {
			return false
		}
	}
	if len(q.Should) == 0 {
		return true
	}
	n := 0
	for _, c := range q.Should {
		if has(fields[c.Field], c.Value) {
			n++
		}
	}
	need := q.MinShould
	if need < 1 {
		need = 1
	}
	return n >= need
}

func has(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
