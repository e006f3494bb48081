package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/config"
	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/engine"
	"github.com/Aman-CERP/catindex/internal/logging"
	"github.com/Aman-CERP/catindex/internal/output"
	"github.com/Aman-CERP/catindex/internal/profiling"
)

type serveOptions struct {
	demo    bool
	state   string
	profile profiling.Options
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the indexing engine in the foreground",
		Long: `Run the indexing engine until interrupted.

The engine listens for catalog events on the events socket, serves admin
requests on the admin socket and exposes Prometheus metrics when
daemon.metrics_addr is set. A PID file guards against a second engine.

With --demo the engine indexes a small built-in catalog into an in-memory
index instead of talking to a token service.

Examples:
  catindex serve                 # Use the configured token service
  catindex serve --demo          # Try it without a catalog
  catindex serve --state sleep   # Start with the worker paused`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.demo, "demo", false, "Serve a built-in in-memory catalog")
	cmd.Flags().StringVar(&opts.state, "state", "", "Initial worker state (overrides config)")
	cmd.Flags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write a CPU profile to file")
	cmd.Flags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write a heap profile to file on exit")
	cmd.Flags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write an execution trace to file")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	out := output.New(cmd.ErrOrStderr())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var memory *catalog.Memory
	if opts.demo {
		memory = catalog.Demo()
		cfg.Index.IngestPath = ""
		cfg.Index.QueryPath = ""
	}
	if opts.state != "" {
		cfg.Worker.InitialState = opts.state
	}
	if globals.debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dcfg := daemon.FromConfig(cfg.Daemon)
	if err := dcfg.Validate(); err != nil {
		return fmt.Errorf("invalid daemon configuration: %w", err)
	}
	if err := dcfg.EnsureDir(); err != nil {
		return err
	}
	if daemon.NewClient(dcfg).IsRunning() {
		return fmt.Errorf("an engine is already serving %s", dcfg.SocketPath)
	}

	pid := daemon.NewPIDFile(dcfg.PIDPath)
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pid.Release() }()

	logger, cleanup, err := logging.Setup(loggingConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()
	prev := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(prev)

	eng, err := engine.New(cfg, engine.Deps{Catalog: memory, Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prof, err := profiling.Start(opts.profile)
	if err != nil {
		return err
	}
	defer func() {
		if err := prof.Stop(); err != nil {
			logger.Warn("profile_write_failed", slog.String("error", err.Error()))
		}
	}()

	if memory != nil {
		n, err := eng.ReindexZones(ctx, memory.Zones())
		if err != nil {
			return err
		}
		out.Statusf("📦", "Demo catalog loaded, %d jobs queued", n)
	}

	out.Successf("Engine running (pid %d)", os.Getpid())
	out.Status("", "admin socket:  "+dcfg.SocketPath)
	if dcfg.EventsSocketPath != "" {
		out.Status("", "events socket: "+dcfg.EventsSocketPath)
	}
	if cfg.Daemon.MetricsAddr != "" {
		out.Status("", "metrics:       http://"+cfg.Daemon.MetricsAddr+"/metrics")
	}

	if err := eng.Start(ctx); err != nil {
		out.Errorf("Engine stopped: %v", err)
		return err
	}
	out.Status("👋", "Engine stopped")
	return nil
}

// loggingConfig maps the logging section onto the logger setup. Engine
// logs always go to stderr as well as the rotating file.
func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{
		Level:         cfg.Logging.Level,
		Format:        cfg.Logging.Format,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: true,
	}
}
