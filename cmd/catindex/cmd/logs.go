package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/config"
	"github.com/Aman-CERP/catindex/internal/logging"
	"github.com/Aman-CERP/catindex/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View engine logs",
		Long: `Show the last lines of the engine log. Use -f to follow new entries.

Examples:
  catindex logs                    # Last 50 lines
  catindex logs -f                 # Follow
  catindex logs --level warn       # Warnings and errors only
  catindex logs --filter job_dropped`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	fs := cmd.Flags()
	fs.BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	fs.IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	fs.StringVar(&opts.level, "level", "", "Minimum level (debug|info|warn|error)")
	fs.StringVar(&opts.filter, "filter", "", "Only lines matching this regex")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	fs.StringVar(&opts.logFile, "file", "", "Log file path (overrides config)")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	path := opts.logFile
	if path == "" {
		if cfg, err := loadConfig(); err == nil {
			path = cfg.Logging.File
		}
	}
	path, err := logging.FindLogFile(config.ExpandHome(path))
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		if pattern, err = regexp.Compile(opts.filter); err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	stdout := cmd.OutOrStdout()
	noColor := opts.noColor || !output.IsTTY(stdout) || output.DetectNoColor()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: noColor,
	}, stdout)

	stderr := cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(stderr, "Log file: %s\n---\n", path)

	if !opts.follow {
		entries, err := viewer.Tail(path, opts.lines)
		if err != nil {
			return err
		}
		viewer.Print(entries)
		return nil
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)
	go func() { errCh <- viewer.Follow(ctx, path, entries) }()

	for {
		select {
		case entry := <-entries:
			_, _ = fmt.Fprintln(stdout, viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		case <-ctx.Done():
			_, _ = fmt.Fprintln(stderr, "---\nStopped.")
			return nil
		}
	}
}
