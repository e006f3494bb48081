package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/deletion"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/jobs"
)

// Outcome classifies a finished job.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	// Dropped jobs are abandoned for good.
	Dropped Outcome = "dropped"
	// Retried jobs went back to the tail of the queue.
	Retried Outcome = "retried"
)

// Drop and retry reasons.
const (
	ReasonNoCredential   = "no_credential"
	ReasonCredentialDown = "credential_unavailable"
	ReasonCatalog        = "catalog_error"
	ReasonNotCollection  = "not_a_collection"
	ReasonIndexWrite     = "index_write_failed"
	ReasonUnknownJob     = "unknown_job_type"
)

// Result is the outcome of one job.
type Result struct {
	Job     jobs.Job `json:"job"`
	Outcome Outcome  `json:"outcome"`
	Reason  string   `json:"reason,omitempty"`
	Err     error    `json:"-"`
	// Documents counts documents written or deleted.
	Documents int `json:"documents"`
	// Enqueued counts follow-up jobs the job produced.
	Enqueued int           `json:"enqueued"`
	Duration time.Duration `json:"duration"`
}

func success(docs int) Result {
	return Result{Outcome: Succeeded, Documents: docs}
}

func drop(reason string, err error) Result {
	return Result{Outcome: Dropped, Reason: reason, Err: err}
}

func retry(reason string, err error) Result {
	return Result{Outcome: Retried, Reason: reason, Err: err}
}

// Execute runs job to completion. Cancellation of ctx does not interrupt
// a started job.
func (w *Worker) Execute(ctx context.Context, job jobs.Job) Result {
	ctx = context.WithoutCancel(ctx)
	start := w.now()

	var res Result
	switch job.Type {
	case jobs.IndexItem:
		res = w.indexItem(ctx, job)
	case jobs.IndexSubtree:
		res = w.indexSubtree(ctx, job)
	case jobs.DeleteItem:
		res = w.deleteItem(ctx, job)
	case jobs.DeleteSubtree:
		res = w.deleteSubtree(ctx, job)
	default:
		res = drop(ReasonUnknownJob, fmt.Errorf("unknown job type %q", job.Type))
	}
	res.Job = job
	res.Duration = w.now().Sub(start)

	w.settle(ctx, &res)
	return res
}

// settle applies a result: re-enqueue, dead-letter, counters and logs.
func (w *Worker) settle(ctx context.Context, res *Result) {
	w.executed.Add(1)
	w.lastJob.Store(w.now().UnixNano())

	attrs := []any{
		slog.String("job", res.Job.ID),
		slog.String("type", string(res.Job.Type)),
		slog.String("zone", res.Job.Zone),
		slog.String("path", res.Job.Path),
		slog.Duration("duration", res.Duration),
	}

	switch res.Outcome {
	case Succeeded:
		w.succeeded.Add(1)
		w.logger.Debug("job_executed", append(attrs,
			slog.Int("documents", res.Documents),
			slog.Int("enqueued", res.Enqueued))...)
	case Retried:
		w.retried.Add(1)
		again := res.Job
		again.Attempts++
		w.queue.Push(again)
		w.logger.Warn("job_retried", append(attrs,
			slog.String("reason", res.Reason),
			slog.Int("attempts", again.Attempts),
			slog.String("error", errString(res.Err)))...)
	case Dropped:
		w.dropped.Add(1)
		w.logger.Warn("job_dropped", append(attrs,
			slog.String("reason", res.Reason),
			slog.String("error", errString(res.Err)))...)
		w.deadLetter(ctx, res)
	}

	if w.opts.Recorder != nil {
		w.opts.Recorder.RecordJob(string(res.Job.Type), string(res.Outcome), res.Duration)
	}
}

func (w *Worker) deadLetter(ctx context.Context, res *Result) {
	if w.opts.DeadLetters == nil {
		return
	}
	reason := res.Reason
	if res.Err != nil {
		reason = reason + ": " + res.Err.Error()
	}
	if err := w.opts.DeadLetters.Record(ctx, res.Job, reason); err != nil {
		w.logger.Error("dead_letter_failed", slog.String("job", res.Job.ID), slog.String("error", err.Error()))
		return
	}
	if w.opts.Recorder != nil {
		w.opts.Recorder.DeadLettered()
	}
}

// lease obtains a session for the job's zone or classifies the failure.
func (w *Worker) lease(ctx context.Context, job jobs.Job) (catalog.Session, *Result) {
	sess, err := w.lessor.Lease(ctx, job.Zone)
	if err == nil {
		return sess, nil
	}
	var res Result
	switch {
	case engerrors.HasCode(err, engerrors.ErrCodeNoCredential):
		res = drop(ReasonNoCredential, err)
	case engerrors.IsRetryable(err):
		res = retry(ReasonCredentialDown, err)
	default:
		res = drop(ReasonCredentialDown, err)
	}
	return nil, &res
}

// catalogFailure classifies an error reading catalog state. A session the
// catalog no longer accepts is worth another attempt with a new lease;
// anything else, such as a vanished item or a denied read, is abandoned.
func catalogFailure(err error) Result {
	if engerrors.HasCode(err, engerrors.ErrCodeLeaseInvalid) {
		return retry(ReasonCredentialDown, err)
	}
	return drop(ReasonCatalog, err)
}

func (w *Worker) indexItem(ctx context.Context, job jobs.Job) Result {
	sess, fail := w.lease(ctx, job)
	if fail != nil {
		return *fail
	}
	defer catalog.Release(sess)

	item, err := sess.Stat(ctx, job.Path)
	if err != nil {
		return catalogFailure(err)
	}
	doc, err := w.builder.Build(ctx, sess, item)
	if err != nil {
		return catalogFailure(err)
	}

	if err := w.write(ctx, func() error {
		return w.index.Upsert(ctx, doc.DocID, doc.Fields())
	}); err != nil {
		return drop(ReasonIndexWrite, err)
	}
	return success(1)
}

// indexSubtree indexes the direct children of a collection and enqueues
// one index_subtree job per child collection.
func (w *Worker) indexSubtree(ctx context.Context, job jobs.Job) Result {
	sess, fail := w.lease(ctx, job)
	if fail != nil {
		return *fail
	}
	defer catalog.Release(sess)

	coll, err := sess.Stat(ctx, job.Path)
	if err != nil {
		return catalogFailure(err)
	}
	if coll.Kind != catalog.KindCollection {
		return drop(ReasonNotCollection, fmt.Errorf("%s is a %s", coll.Path, coll.Kind))
	}
	children, err := sess.Children(ctx, coll.Path)
	if err != nil {
		return catalogFailure(err)
	}

	written := 0
	var next []jobs.Job
	for start := 0; start < len(children); start += w.opts.BulkSize {
		end := min(start+w.opts.BulkSize, len(children))

		batch := make(map[string]map[string]any, end-start)
		for _, child := range children[start:end] {
			// A child whose document fails still has its own subtree walked.
			if child.Kind == catalog.KindCollection {
				next = append(next, jobs.New(job.Zone, jobs.IndexSubtree, catalog.KindCollection, child.Path))
			}
			doc, err := w.builder.Build(ctx, sess, child)
			if err != nil {
				w.logger.Warn("child_skipped",
					slog.String("path", child.Path),
					slog.String("error", err.Error()))
				continue
			}
			batch[doc.DocID] = doc.Fields()
		}

		if err := w.write(ctx, func() error {
			return w.index.BulkUpsert(ctx, batch)
		}); err != nil {
			return drop(ReasonIndexWrite, err)
		}
		written += len(batch)
	}

	w.queue.PushMany(next...)
	res := success(written)
	res.Enqueued = len(next)
	return res
}

// deleteItem removes one document. A collection cannot exist without its
// contents, so deleting one removes its descendants as well.
func (w *Worker) deleteItem(ctx context.Context, job jobs.Job) Result {
	var plan deletion.Plan
	switch {
	case job.ItemKind == catalog.KindCollection:
		plan = deletion.SubtreeByPath(job.Zone, job.Path)
	case job.ItemID != 0:
		plan = deletion.Item(job.Zone, job.ItemID, job.ItemKind)
	default:
		plan = deletion.ItemByPath(job.Zone, job.Path)
	}
	return w.runPlan(ctx, job, plan)
}

func (w *Worker) deleteSubtree(ctx context.Context, job jobs.Job) Result {
	plan := deletion.SubtreeByPath(job.Zone, job.Path)
	if job.ItemID != 0 {
		plan = deletion.SubtreeByID(job.Zone, job.ItemID)
	}
	return w.runPlan(ctx, job, plan)
}

func (w *Worker) runPlan(ctx context.Context, job jobs.Job, plan deletion.Plan) Result {
	removed := 0
	err := w.write(ctx, func() error {
		removed = 0
		n, err := w.index.DeleteIDs(ctx, plan.DocIDs)
		if err != nil {
			return err
		}
		removed += n
		n, err = w.index.DeleteByQuery(ctx, plan.Query)
		removed += n
		return err
	})
	if w.opts.InvalidatePaths {
		if n := w.builder.Cache().InvalidatePrefix(job.Zone, job.Path); n > 0 {
			w.logger.Debug("path_cache_invalidated", slog.String("path", job.Path), slog.Int("entries", n))
		}
	}
	if err != nil {
		return drop(ReasonIndexWrite, err)
	}
	return success(removed)
}

// write runs an index mutation under the configured retry policy.
func (w *Worker) write(ctx context.Context, fn func() error) error {
	cfg := w.opts.IndexRetry
	if cfg.MaxRetries <= 0 {
		return fn()
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	cfg.OnRetry = func(retry int, err error, wait time.Duration) {
		w.logger.Warn("index_write_retry",
			slog.Int("retry", retry),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}
	return engerrors.Retry(ctx, cfg, fn)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
