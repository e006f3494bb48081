package engine

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/daemon"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/events"
	"github.com/Aman-CERP/catindex/internal/searchindex"
	"github.com/Aman-CERP/catindex/internal/worker"
)

var _ daemon.Handler = (*Engine)(nil)

// Status implements daemon.Handler.
func (e *Engine) Status(ctx context.Context) daemon.StatusResult {
	st := e.worker.Stats()
	res := daemon.StatusResult{
		State:       string(st.State),
		QueueLength: e.queue.Len(),
		Worker:      st,
		Leases:      len(e.broker.Leases()),
		Events: daemon.EventStats{
			Published: e.bus.Published(),
			Invalid:   e.bus.Invalid(),
		},
		Index: daemon.IndexStatus{
			IngestPath: e.manager.Ingest().Path(),
			QueryPath:  e.manager.Query().Path(),
			Shared:     e.manager.Shared(),
			Refreshes:  e.manager.Refreshes(),
		},
	}
	if n, err := e.manager.Query().DocCount(); err == nil {
		res.Index.Documents = n
	} else {
		e.logger.Warn("status_doc_count_failed", slog.String("error", err.Error()))
	}
	if e.dead != nil {
		if n, err := e.dead.Count(ctx); err == nil {
			res.DeadLetters = &n
		}
	}
	return res
}

// Queue implements daemon.Handler.
func (e *Engine) Queue(sample int) daemon.QueueResult {
	return daemon.QueueResult{
		Length: e.queue.Len(),
		Sample: e.queue.Sample(sample),
	}
}

// SetState implements daemon.Handler.
func (e *Engine) SetState(state string) (daemon.SetStateResult, error) {
	s, err := worker.ParseState(state)
	if err != nil {
		return daemon.SetStateResult{}, err
	}
	prev := e.worker.State()
	if err := e.worker.SetState(s); err != nil {
		return daemon.SetStateResult{}, err
	}
	return daemon.SetStateResult{Previous: string(prev), State: string(s)}, nil
}

// Refresh implements daemon.Handler.
func (e *Engine) Refresh() (daemon.RefreshResult, error) {
	if err := e.manager.Refresh(); err != nil {
		return daemon.RefreshResult{}, err
	}
	return daemon.RefreshResult{Refreshes: e.manager.Refreshes()}, nil
}

// Reindex implements daemon.Handler.
func (e *Engine) Reindex(ctx context.Context, zones []string) (daemon.ReindexResult, error) {
	if len(zones) == 0 {
		zones = e.knownZones()
	}
	n, err := e.ReindexZones(ctx, zones)
	if err != nil {
		return daemon.ReindexResult{}, err
	}
	return daemon.ReindexResult{Zones: zones, Enqueued: n}, nil
}

// ReindexZones recreates the ingest index and enqueues a full walk of
// every zone. It returns the number of jobs enqueued.
func (e *Engine) ReindexZones(ctx context.Context, zones []string) (int, error) {
	if err := e.manager.Reindex(ctx); err != nil {
		return 0, err
	}
	e.builder.Cache().Clear()

	n := 0
	for _, zone := range zones {
		n += len(e.scheduler.Submit(ctx, events.SubtreeAdded{Zone: zone, Path: catalog.ZoneRoot(zone)}))
	}
	e.logger.Warn("reindex_requested", slog.Any("zones", zones), slog.Int("jobs", n))
	return n, nil
}

// knownZones returns the zones a reindex covers by default: every zone
// of an in-memory catalog, otherwise every zone with a cached lease.
func (e *Engine) knownZones() []string {
	if e.memory != nil {
		return e.memory.Zones()
	}
	zones := e.broker.Zones()
	sort.Strings(zones)
	return zones
}

// Submit implements daemon.Handler.
func (e *Engine) Submit(ctx context.Context, name string, fields map[string]any) (daemon.SubmitResult, error) {
	ev, err := events.Decode(name, fields)
	if err != nil {
		e.metrics.EventReceived(events.NormalizeName(name), false)
		return daemon.SubmitResult{}, err
	}
	e.metrics.EventReceived(ev.Name(), true)
	return daemon.SubmitResult{Jobs: e.scheduler.Submit(ctx, ev)}, nil
}

// Search implements daemon.Handler.
func (e *Engine) Search(ctx context.Context, req searchindex.Request) (*searchindex.Response, error) {
	return e.manager.Query().Search(ctx, req)
}

// Leases implements daemon.Handler.
func (e *Engine) Leases() daemon.LeasesResult {
	return daemon.LeasesResult{Leases: e.broker.Leases()}
}

// EvictLease implements daemon.Handler.
func (e *Engine) EvictLease(zone string, all bool) daemon.EvictLeaseResult {
	if all {
		return daemon.EvictLeaseResult{Evicted: e.broker.EvictAll()}
	}
	if e.broker.Evict(zone) {
		return daemon.EvictLeaseResult{Evicted: 1}
	}
	return daemon.EvictLeaseResult{}
}

// DeadLetters implements daemon.Handler.
func (e *Engine) DeadLetters(ctx context.Context, limit int) (daemon.DeadLettersResult, error) {
	if e.dead == nil {
		return daemon.DeadLettersResult{}, engerrors.Newf(engerrors.ErrCodeConfigInvalid, "dead-letter store is disabled")
	}
	if limit <= 0 {
		limit = 50
	}
	entries, err := e.dead.List(ctx, limit)
	if err != nil {
		return daemon.DeadLettersResult{}, err
	}
	n, err := e.dead.Count(ctx)
	if err != nil {
		return daemon.DeadLettersResult{}, err
	}
	return daemon.DeadLettersResult{Count: n, Entries: entries}, nil
}
