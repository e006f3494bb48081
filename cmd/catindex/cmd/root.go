// Package cmd provides the CLI commands for catindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/config"
	engerrors "github.com/Aman-CERP/catindex/internal/errors"
	"github.com/Aman-CERP/catindex/internal/logging"
	"github.com/Aman-CERP/catindex/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	socketPath string
	debug      bool
}

var (
	globals        globalOptions
	loggingCleanup func()
)

// NewRootCmd creates the root command for catindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catindex",
		Short: "Incremental search indexing for a data catalog",
		Long: `catindex keeps a search index in step with a hierarchical data catalog.

Catalog mutation events become jobs on a single queue. One worker turns
each job into index writes, leasing per-zone catalog sessions from a
token service as it goes.

Run 'catindex serve' to start the engine, then use the other commands
to inspect and control it over its admin socket.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("catindex version {{.Version}}\n")

	fs := cmd.PersistentFlags()
	addConfigFlag(fs, &globals.configPath)
	fs.StringVar(&globals.socketPath, "socket", "", "Admin socket path (overrides config)")
	fs.BoolVar(&globals.debug, "debug", false, "Enable debug logging to ~/.catindex/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newQueueCmd())
	cmd.AddCommand(newStateCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newSubmitCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newLeasesCmd())
	cmd.AddCommand(newDeadLettersCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the debug logger when --debug is set.
// serve configures its own logger from the configuration.
func startLogging(_ *cobra.Command, _ []string) error {
	if !globals.debug {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Debug("debug_logging_enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// loadConfig returns the effective configuration with flag overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(globals.configPath)
	if err != nil {
		return nil, err
	}
	if globals.socketPath != "" {
		cfg.Daemon.SocketPath = globals.socketPath
	}
	return cfg, nil
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	root := NewRootCmd()
	root.SilenceErrors = true
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, formatError(err))
	}
	return err
}

// formatError shows engine errors, including those returned over the admin
// socket, with their details and code.
func formatError(err error) string {
	if _, ok := engerrors.As(err); ok {
		return engerrors.FormatForCLI(err)
	}
	return "Error: " + err.Error() + "\n"
}
