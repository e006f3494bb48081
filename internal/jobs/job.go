// Package jobs defines index jobs and the in-memory queue between the
// scheduler and the worker.
package jobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/catindex/internal/catalog"
)

// Type is the kind of work a job performs.
type Type string

const (
	IndexItem     Type = "index_item"
	IndexSubtree  Type = "index_subtree"
	DeleteItem    Type = "delete_item"
	DeleteSubtree Type = "delete_subtree"
)

// Types lists every job type.
var Types = []Type{IndexItem, IndexSubtree, DeleteItem, DeleteSubtree}

// Valid reports whether t is a known job type.
func (t Type) Valid() bool {
	switch t {
	case IndexItem, IndexSubtree, DeleteItem, DeleteSubtree:
		return true
	}
	return false
}

// Job is one unit of index work. Jobs live only in memory.
type Job struct {
	ID       string       `json:"id"`
	Zone     string       `json:"zone"`
	Type     Type         `json:"type"`
	ItemKind catalog.Kind `json:"item_kind"`
	Path     string       `json:"path"`
	// ItemID is zero when unknown.
	ItemID     int64     `json:"item_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	// Attempts counts transient-failure re-enqueues.
	Attempts int `json:"attempts,omitempty"`
}

// New creates a job stamped with a fresh id and the current time.
func New(zone string, t Type, kind catalog.Kind, path string) Job {
	return Job{
		ID:         uuid.NewString(),
		Zone:       zone,
		Type:       t,
		ItemKind:   kind,
		Path:       catalog.Clean(path),
		EnqueuedAt: time.Now().UTC(),
	}
}

// String renders the job for logs.
func (j Job) String() string {
	return fmt.Sprintf("%s %s:%s (%s)", j.Type, j.Zone, j.Path, j.ItemKind)
}
