// Package scheduler turns catalog events into index jobs.
//
// Submit never blocks on the worker and never reports job outcomes; it
// only appends to the shared queue.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/events"
	"github.com/Aman-CERP/catindex/internal/jobs"
	"github.com/Aman-CERP/catindex/internal/logging"
)

// Scheduler maps events to jobs on a queue.
type Scheduler struct {
	queue  *jobs.Queue
	logger *slog.Logger
}

// Options configures a Scheduler.
type Options struct {
	Logger *slog.Logger
}

// New creates a scheduler feeding queue.
func New(queue *jobs.Queue, opts Options) *Scheduler {
	s := &Scheduler{
		queue:  queue,
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

// Submit enqueues the jobs for ev and returns them.
func (s *Scheduler) Submit(ctx context.Context, ev events.Event) []jobs.Job {
	js := s.Plan(ev)
	s.queue.PushMany(js...)
	s.logger.Debug("event_scheduled",
		slog.String("event", ev.Name()),
		slog.String("zone", ev.ZoneName()),
		slog.Int("jobs", len(js)))
	return js
}

// Handle adapts Submit to an events.Handler.
func (s *Scheduler) Handle(ctx context.Context, ev events.Event) {
	s.Submit(ctx, ev)
}

// Plan returns the jobs for ev without enqueueing them. A non-recursive
// permission change without a kind yields an index_item job of unknown
// kind; the worker resolves it from the catalog when the job runs.
func (s *Scheduler) Plan(ev events.Event) []jobs.Job {
	switch e := ev.(type) {
	case events.ItemAdded:
		return []jobs.Job{jobs.New(e.Zone, jobs.IndexItem, e.Kind, e.Path)}
	case events.ItemChanged:
		return []jobs.Job{jobs.New(e.Zone, jobs.IndexItem, e.Kind, e.Path)}
	case events.SubtreeAdded:
		return subtree(e.Zone, e.Path)
	case events.ItemDeleted:
		return []jobs.Job{jobs.New(e.Zone, jobs.DeleteItem, e.Kind, e.Path)}
	case events.ItemTrashed:
		return []jobs.Job{jobs.New(e.Zone, jobs.DeleteItem, e.Kind, e.Path)}
	case events.ItemMoved:
		return relocate(e.Zone, e.Kind, e.OldPath, e.NewPath)
	case events.ItemRenamed:
		return relocate(e.Zone, e.Kind, e.OldPath, e.NewPath)
	case events.ItemCopied:
		return []jobs.Job{jobs.New(e.Zone, jobs.IndexItem, e.Kind, e.NewPath)}
	case events.PermissionsChanged:
		if e.Recursive {
			return subtree(e.Zone, e.Path)
		}
		return []jobs.Job{jobs.New(e.Zone, jobs.IndexItem, e.Kind, e.Path)}
	default:
		s.logger.Warn("event_unscheduled", slog.String("event", ev.Name()))
		return nil
	}
}

// subtree indexes a collection and then its contents.
func subtree(zone, path string) []jobs.Job {
	return []jobs.Job{
		jobs.New(zone, jobs.IndexItem, catalog.KindCollection, path),
		jobs.New(zone, jobs.IndexSubtree, catalog.KindCollection, path),
	}
}

// relocate handles moves and renames as delete-old then index-new.
func relocate(zone string, kind catalog.Kind, oldPath, newPath string) []jobs.Job {
	if kind == catalog.KindCollection {
		return append(
			[]jobs.Job{jobs.New(zone, jobs.DeleteSubtree, kind, oldPath)},
			subtree(zone, newPath)...,
		)
	}
	return []jobs.Job{
		jobs.New(zone, jobs.DeleteItem, kind, oldPath),
		jobs.New(zone, jobs.IndexItem, kind, newPath),
	}
}
