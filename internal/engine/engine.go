// Package engine wires the indexing pipeline together: catalog events
// become jobs on a single queue, one worker turns jobs into index writes,
// and an admin socket exposes control and inspection.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/config"
	"github.com/Aman-CERP/catindex/internal/credential"
	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/deadletter"
	"github.com/Aman-CERP/catindex/internal/document"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/events"
	"github.com/Aman-CERP/catindex/internal/jobs"
	"github.com/Aman-CERP/catindex/internal/logging"
	"github.com/Aman-CERP/catindex/internal/metrics"
	"github.com/Aman-CERP/catindex/internal/scheduler"
	"github.com/Aman-CERP/catindex/internal/searchindex"
	"github.com/Aman-CERP/catindex/internal/watcher"
	"github.com/Aman-CERP/catindex/internal/worker"
	"github.com/Aman-CERP/catindex/pkg/version"
)

// Deps are optional collaborators. Zero values select the production
// implementations named by the configuration.
type Deps struct {
	// Catalog serves every zone from memory instead of the token service
	// and catalog API.
	Catalog *catalog.Memory
	// Source and Factory override the token service client and the
	// catalog session constructor.
	Source  credential.TokenSource
	Factory credential.SessionFactory
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Engine owns every long-lived component of a running indexer.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	memory *catalog.Memory

	queue     *jobs.Queue
	broker    *credential.Broker
	builder   *document.Builder
	manager   *searchindex.Manager
	scheduler *scheduler.Scheduler
	bus       *events.Bus
	worker    *worker.Worker
	metrics   *metrics.Metrics
	dead      *deadletter.Store

	listener *events.Listener
	server   *daemon.Server

	closeOnce sync.Once
	closeErr  error
}

// New builds an engine from cfg. Nothing runs until Start.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	e := &Engine{
		cfg:     cfg,
		logger:  deps.Logger,
		memory:  deps.Catalog,
		metrics: deps.Metrics,
		queue:   jobs.NewQueue(),
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}

	e.broker = credential.NewBroker(e.tokenSource(deps), e.sessionFactory(deps), credential.Options{
		SafetyMargin: cfg.Credentials.SafetyMargin,
		Breaker: engerrors.NewCircuitBreaker("token-service", engerrors.BreakerConfig{
			Failures: cfg.Credentials.BreakerFailures,
			Cooldown: cfg.Credentials.BreakerReset,
			OnChange: e.logBreaker,
		}),
		Logger:   e.logger.With(slog.String("component", "broker")),
		Observer: e.metrics,
	})
	e.metrics.TrackLeases(func() int { return len(e.broker.Leases()) })

	im := searchindex.DefaultMapping()
	if cfg.Index.MappingFile != "" {
		loaded, err := searchindex.LoadMapping(cfg.Index.MappingFile)
		if err != nil {
			return nil, err
		}
		im = loaded
	}
	manager, err := searchindex.NewManager(searchindex.Options{
		QueryPath:  cfg.QueryIndexPath(),
		IngestPath: cfg.Index.IngestPath,
		Mapping:    im,
		Logger:     e.logger.With(slog.String("component", "index")),
		OnRefresh:  e.metrics.ClientRefreshed,
	})
	if err != nil {
		return nil, err
	}
	e.manager = manager

	if cfg.DeadLetter.Enabled {
		store, err := deadletter.Open(cfg.DeadLetter.Path, cfg.DeadLetter.MaxRows)
		if err != nil {
			_ = manager.Close()
			return nil, err
		}
		e.dead = store
	}

	e.builder = document.NewBuilder(document.NewPathIDCache(cfg.Catalog.PathCacheSize))
	e.scheduler = scheduler.New(e.queue, scheduler.Options{
		Logger: e.logger.With(slog.String("component", "scheduler")),
	})
	e.bus = events.NewBus(e.logger.With(slog.String("component", "events")), e.metrics)
	e.bus.Subscribe(e.scheduler.Handle, events.Names...)

	state, err := worker.ParseState(cfg.Worker.InitialState)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	opts := worker.Options{
		TickInterval:      cfg.Worker.TickInterval,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		RefreshInterval:   cfg.Worker.RefreshInterval,
		InitialState:      state,
		BulkSize:          cfg.Index.BulkSize,
		IndexRetry: engerrors.RetryConfig{
			MaxRetries:   cfg.Worker.IndexRetry.MaxRetries,
			InitialDelay: cfg.Worker.IndexRetry.InitialDelay,
			MaxDelay:     cfg.Worker.IndexRetry.MaxDelay,
			Multiplier:   2,
			Jitter:       true,
		},
		InvalidatePaths: cfg.Catalog.InvalidatePathsOnDelete,
		Refresher:       e.manager,
		Recorder:        e.metrics,
		Logger:          e.logger.With(slog.String("component", "worker")),
	}
	if e.dead != nil {
		opts.DeadLetters = e.dead
	}
	e.worker = worker.New(e.queue, e.broker, e.builder, e.manager.Ingest(), opts)

	if cfg.Daemon.EventsSocketPath != "" {
		e.listener = events.NewListener(cfg.Daemon.EventsSocketPath, e.bus, e.logger.With(slog.String("component", "listener")))
	}
	if cfg.Daemon.SocketPath != "" {
		e.server = daemon.NewServer(cfg.Daemon.SocketPath, e, e.logger.With(slog.String("component", "admin")))
		e.server.SetTimeout(cfg.Daemon.Timeout)
	}
	return e, nil
}

func (e *Engine) tokenSource(deps Deps) credential.TokenSource {
	switch {
	case deps.Source != nil:
		return deps.Source
	case e.memory != nil:
		return credential.TokenSourceFunc(func(_ context.Context, zone string) (credential.Grant, error) {
			return credential.Grant{
				Endpoint:  catalog.Endpoint{Scheme: "memory", Host: "localhost", Zone: zone},
				Token:     "memory-" + zone,
				ExpiresAt: time.Now().Add(time.Hour),
			}, nil
		})
	default:
		return credential.NewHTTPTokenSource(e.cfg.Credentials.ServiceURL, e.cfg.Credentials.TokenFile, e.cfg.Credentials.RequestTimeout)
	}
}

func (e *Engine) sessionFactory(deps Deps) credential.SessionFactory {
	switch {
	case deps.Factory != nil:
		return deps.Factory
	case e.memory != nil:
		return func(zone string, _ credential.Grant) (catalog.Session, error) {
			return e.memory.Open(zone), nil
		}
	default:
		return credential.HTTPSessionFactory(e.cfg.Catalog.RequestTimeout)
	}
}

func (e *Engine) logBreaker(name string, from, to engerrors.State) {
	level := slog.LevelInfo
	if to == engerrors.StateOpen {
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, "breaker_state_changed",
		slog.String("breaker", name),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
}

// Bus returns the event bus. Publishing on it schedules jobs.
func (e *Engine) Bus() *events.Bus { return e.bus }

// JobQueue returns the job queue.
func (e *Engine) JobQueue() *jobs.Queue { return e.queue }

// Worker returns the job consumer.
func (e *Engine) Worker() *worker.Worker { return e.worker }

// Broker returns the credential broker.
func (e *Engine) Broker() *credential.Broker { return e.broker }

// Index returns the index client manager.
func (e *Engine) Index() *searchindex.Manager { return e.manager }

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// Server returns the admin server, or nil when no socket is configured.
func (e *Engine) Server() *daemon.Server { return e.server }

// Listener returns the events listener, or nil when no socket is configured.
func (e *Engine) Listener() *events.Listener { return e.listener }

// Start runs every engine loop until ctx is cancelled or one of them
// fails. Cancellation is not an error.
func (e *Engine) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return quiet(e.worker.Run(ctx)) })
	g.Go(func() error { return e.broker.Run(ctx, e.cfg.Credentials.SweepInterval) })
	if e.memory == nil && e.cfg.Credentials.WatchTokenFile && e.cfg.Credentials.TokenFile != "" {
		g.Go(func() error { return e.watchCredential(ctx) })
	}
	if e.listener != nil {
		g.Go(func() error { return quiet(e.listener.ListenAndServe(ctx)) })
	}
	if e.server != nil {
		g.Go(func() error { return quiet(e.server.ListenAndServe(ctx)) })
	}
	if e.cfg.Daemon.MetricsAddr != "" {
		g.Go(func() error { return e.serveMetrics(ctx) })
	}

	e.logger.Info("engine_started",
		slog.String("build", version.String()),
		slog.String("state", string(e.worker.State())),
		slog.String("admin_socket", e.cfg.Daemon.SocketPath),
		slog.String("events_socket", e.cfg.Daemon.EventsSocketPath),
		slog.Bool("memory_catalog", e.memory != nil))

	err := g.Wait()
	e.logger.Info("engine_stopped", slog.Int("queued", e.queue.Len()))
	return err
}

func quiet(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchCredential evicts every lease when the service credential file
// changes. A watch that cannot be set up is logged and skipped.
func (e *Engine) watchCredential(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(watcher.Options{
		Debounce: 250 * time.Millisecond,
		Logger:   e.logger,
	})
	if err != nil {
		e.logger.Warn("credential_watch_disabled", slog.String("error", err.Error()))
		return nil
	}
	err = fw.Watch(ctx, []string{e.cfg.Credentials.TokenFile}, func(ev watcher.FileEvent) {
		n := e.broker.CredentialChanged()
		e.logger.Info("credential_changed",
			slog.String("op", ev.Operation.String()),
			slog.Int("evicted", n))
	})
	if err != nil {
		e.logger.Warn("credential_watch_disabled", slog.String("error", err.Error()))
	}
	return nil
}

// serveMetrics exposes /metrics and /health until ctx is done.
func (e *Engine) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.cfg.Daemon.MetricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	srv := &http.Server{
		Handler:           e.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	e.logger.Info("metrics_listening", slog.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the index, the dead-letter store and cached leases.
// Call it after Start has returned.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error
		if e.broker != nil {
			errs = append(errs, e.broker.Close())
		}
		if e.dead != nil {
			errs = append(errs, e.dead.Close())
		}
		if e.manager != nil {
			errs = append(errs, e.manager.Close())
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
