// Package metrics provides Prometheus metrics for the indexing engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all engine metrics on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Job metrics
	JobsTotal   *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
	QueueLength prometheus.Gauge
	WorkerState *prometheus.GaugeVec

	// Event metrics
	EventsTotal *prometheus.CounterVec

	// Credential metrics
	LeaseFetchesTotal   *prometheus.CounterVec
	LeaseEvictionsTotal *prometheus.CounterVec

	// Index metrics
	ClientRefreshesTotal prometheus.Counter
	DeadLettersTotal     prometheus.Counter

	StartTime time.Time
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{Registry: reg, StartTime: time.Now()}

	m.JobsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catindex_jobs_total",
			Help: "Total number of index jobs by type and result",
		},
		[]string{"type", "result"},
	)

	m.JobDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catindex_job_duration_seconds",
			Help:    "Duration of index job execution in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	m.QueueLength = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "catindex_queue_length",
			Help: "Number of jobs waiting in the queue",
		},
	)

	m.WorkerState = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catindex_worker_state",
			Help: "1 for the worker's current state, 0 otherwise",
		},
		[]string{"state"},
	)

	m.EventsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catindex_events_total",
			Help: "Total number of catalog events received",
		},
		[]string{"event", "valid"},
	)

	m.LeaseFetchesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catindex_lease_fetches_total",
			Help: "Total number of credential fetches by result",
		},
		[]string{"result"},
	)

	m.LeaseEvictionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catindex_lease_evictions_total",
			Help: "Total number of zone lease evictions by reason",
		},
		[]string{"reason"},
	)

	m.ClientRefreshesTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "catindex_client_refreshes_total",
			Help: "Total number of index client refreshes",
		},
	)

	m.DeadLettersTotal = f.NewCounter(
		prometheus.CounterOpts{
			Name: "catindex_dead_letters_total",
			Help: "Total number of dropped jobs written to the dead-letter store",
		},
	)

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "catindex_uptime_seconds",
			Help: "Engine uptime in seconds",
		},
		func() float64 { return time.Since(m.StartTime).Seconds() },
	)

	return m
}

// RecordJob records one executed job.
func (m *Metrics) RecordJob(jobType, result string, duration time.Duration) {
	m.JobsTotal.WithLabelValues(jobType, result).Inc()
	m.JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// SetQueueLength records the queue length.
func (m *Metrics) SetQueueLength(n int) {
	m.QueueLength.Set(float64(n))
}

// SetWorkerState marks state as current among states.
func (m *Metrics) SetWorkerState(state string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.WorkerState.WithLabelValues(s).Set(v)
	}
}

// EventReceived implements events.Observer.
func (m *Metrics) EventReceived(name string, valid bool) {
	label := "true"
	if !valid {
		label = "false"
	}
	m.EventsTotal.WithLabelValues(name, label).Inc()
}

// LeaseFetched implements credential.Observer.
func (m *Metrics) LeaseFetched(result string) {
	m.LeaseFetchesTotal.WithLabelValues(result).Inc()
}

// LeaseEvicted implements credential.Observer.
func (m *Metrics) LeaseEvicted(reason string) {
	m.LeaseEvictionsTotal.WithLabelValues(reason).Inc()
}

// TrackLeases exports the cached lease count, read from count at every
// scrape. Call it once per registry.
func (m *Metrics) TrackLeases(count func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "catindex_leases_cached",
			Help: "Number of zone leases currently cached",
		},
		func() float64 { return float64(count()) },
	))
}

// ClientRefreshed counts an index client refresh.
func (m *Metrics) ClientRefreshed() {
	m.ClientRefreshesTotal.Inc()
}

// DeadLettered counts a job written to the dead-letter store.
func (m *Metrics) DeadLettered() {
	m.DeadLettersTotal.Inc()
}

// Handler serves the registry plus a health endpoint.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"catindex"}`))
	})
	return mux
}
