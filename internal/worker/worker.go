// Package worker is the single consumer of the job queue.
//
// All index mutations run on the worker, one job at a time, so no two
// jobs ever touch the index concurrently. Execution reports an explicit
// Result; job failures never reach the producer that caused the job.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/document"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/jobs"
	"github.com/Aman-CERP/catindex/internal/logging"
	"github.com/Aman-CERP/catindex/internal/searchindex"
)

// Lessor hands out catalog sessions. credential.Broker implements it.
type Lessor interface {
	Lease(ctx context.Context, zone string) (catalog.Session, error)
}

// Refresher recreates index client handles. searchindex.Manager
// implements it.
type Refresher interface {
	Refresh() error
}

// DeadLetters records dropped jobs. deadletter.Store implements it.
type DeadLetters interface {
	Record(ctx context.Context, j jobs.Job, reason string) error
}

// Recorder receives worker metrics. metrics.Metrics implements it.
type Recorder interface {
	RecordJob(jobType, result string, duration time.Duration)
	SetQueueLength(n int)
	SetWorkerState(state string, states []string)
	DeadLettered()
}

// Options configures a Worker.
type Options struct {
	TickInterval      time.Duration
	HeartbeatInterval time.Duration
	// RefreshInterval is how often Refresher runs. Zero disables it.
	RefreshInterval time.Duration
	InitialState    State
	// BulkSize caps documents per bulk upsert.
	BulkSize int
	// IndexRetry bounds retries of failed index writes. MaxRetries 0
	// drops the job on the first failure.
	IndexRetry engerrors.RetryConfig
	// InvalidatePaths drops cached path ids under deleted paths.
	InvalidatePaths bool

	Refresher   Refresher
	DeadLetters DeadLetters
	Recorder    Recorder
	Logger      *slog.Logger
	Now         func() time.Time
}

// Stats are cumulative worker counters.
type Stats struct {
	State     State     `json:"state"`
	Ticks     uint64    `json:"ticks"`
	Executed  uint64    `json:"executed"`
	Succeeded uint64    `json:"succeeded"`
	Dropped   uint64    `json:"dropped"`
	Retried   uint64    `json:"retried"`
	Flushed   uint64    `json:"flushed"`
	LastJobAt time.Time `json:"last_job_at,omitempty"`
}

// Worker consumes jobs from a queue.
type Worker struct {
	queue   *jobs.Queue
	lessor  Lessor
	builder *document.Builder
	index   searchindex.IngestClient
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State

	ticks     atomic.Uint64
	executed  atomic.Uint64
	succeeded atomic.Uint64
	dropped   atomic.Uint64
	retried   atomic.Uint64
	flushed   atomic.Uint64
	lastJob   atomic.Int64
}

// New creates a worker.
func New(queue *jobs.Queue, lessor Lessor, builder *document.Builder, index searchindex.IngestClient, opts Options) *Worker {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = time.Minute
	}
	if opts.BulkSize <= 0 {
		opts.BulkSize = 500
	}
	if !opts.InitialState.Valid() {
		opts.InitialState = Active
	}
	w := &Worker{
		queue:   queue,
		lessor:  lessor,
		builder: builder,
		index:   index,
		opts:    opts,
		logger:  opts.Logger,
		now:     opts.Now,
		state:   opts.InitialState,
	}
	if w.logger == nil {
		w.logger = logging.Discard()
	}
	if w.now == nil {
		w.now = time.Now
	}
	w.recordState(w.state)
	return w
}

// State returns the current state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetState moves the worker to s. Leaving flush discards whatever was
// queued since its last tick, so only jobs enqueued after the change run.
func (w *Worker) SetState(s State) error {
	if !s.Valid() {
		return engerrors.Newf(engerrors.ErrCodeInvalidState, "unknown worker state %q", s)
	}
	w.mu.Lock()
	prev := w.state
	w.state = s
	dropped := 0
	if prev == Flush && s != Flush {
		dropped = w.queue.Clear()
	}
	w.mu.Unlock()

	if dropped > 0 {
		w.flushed.Add(uint64(dropped))
	}
	w.recordState(s)
	w.logger.Info("worker_state_changed",
		slog.String("from", string(prev)),
		slog.String("to", string(s)),
		slog.Int("flushed", dropped))
	return nil
}

func (w *Worker) recordState(s State) {
	if w.opts.Recorder != nil {
		w.opts.Recorder.SetWorkerState(string(s), StateNames())
	}
}

// Tick performs one unit of worker activity for the current state. It
// reports the executed job's result, if any.
func (w *Worker) Tick(ctx context.Context) (Result, bool) {
	w.ticks.Add(1)
	defer w.recordQueue()

	w.mu.Lock()
	state := w.state
	switch state {
	case Flush, FlushSleep, FlushActive:
		n := w.queue.Clear()
		w.state = state.after()
		w.mu.Unlock()

		if n > 0 {
			w.flushed.Add(uint64(n))
			w.logger.Info("queue_flushed", slog.String("state", string(state)), slog.Int("jobs", n))
		}
		if next := state.after(); next != state {
			w.recordState(next)
			w.logger.Info("worker_state_changed",
				slog.String("from", string(state)),
				slog.String("to", string(next)))
		}
		return Result{}, false
	case Sleep:
		w.mu.Unlock()
		return Result{}, false
	}
	// Popping under mu keeps a job pushed after SetState(Flush) from
	// running.
	job, ok := w.queue.Pop()
	w.mu.Unlock()
	if !ok {
		return Result{}, false
	}
	return w.Execute(ctx, job), true
}

// Run drives Tick until ctx is cancelled, logging a heartbeat and
// refreshing index clients on their own intervals.
func (w *Worker) Run(ctx context.Context) error {
	tick := time.NewTicker(w.opts.TickInterval)
	defer tick.Stop()
	heartbeat := time.NewTicker(w.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	var refresh <-chan time.Time
	if w.opts.Refresher != nil && w.opts.RefreshInterval > 0 {
		t := time.NewTicker(w.opts.RefreshInterval)
		defer t.Stop()
		refresh = t.C
	}

	w.logger.Info("worker_started",
		slog.String("state", string(w.State())),
		slog.Duration("tick", w.opts.TickInterval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker_stopped", slog.Int("queued", w.queue.Len()))
			return ctx.Err()
		case <-tick.C:
			w.Tick(ctx)
		case <-heartbeat.C:
			w.Heartbeat()
		case <-refresh:
			if err := w.opts.Refresher.Refresh(); err != nil {
				w.logger.Error("index_refresh_failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Heartbeat logs the worker's state and counters.
func (w *Worker) Heartbeat() {
	st := w.Stats()
	w.logger.Info("worker_heartbeat",
		slog.String("state", string(st.State)),
		slog.Int("queued", w.queue.Len()),
		slog.Uint64("executed", st.Executed),
		slog.Uint64("dropped", st.Dropped),
		slog.Uint64("retried", st.Retried),
		slog.Uint64("flushed", st.Flushed))
}

// Stats returns a snapshot of the counters.
func (w *Worker) Stats() Stats {
	st := Stats{
		State:     w.State(),
		Ticks:     w.ticks.Load(),
		Executed:  w.executed.Load(),
		Succeeded: w.succeeded.Load(),
		Dropped:   w.dropped.Load(),
		Retried:   w.retried.Load(),
		Flushed:   w.flushed.Load(),
	}
	if ns := w.lastJob.Load(); ns != 0 {
		st.LastJobAt = time.Unix(0, ns).UTC()
	}
	return st
}

func (w *Worker) recordQueue() {
	if w.opts.Recorder != nil {
		w.opts.Recorder.SetQueueLength(w.queue.Len())
	}
}
