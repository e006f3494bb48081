package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/events"
	"github.com/Aman-CERP/catindex/internal/output"
)

type submitOptions struct {
	fields     []string
	viaEvents  bool
	jsonOutput bool
}

func newSubmitCmd() *cobra.Command {
	var opts submitOptions

	cmd := &cobra.Command{
		Use:   "submit <event> [--field key=value...]",
		Short: "Hand a catalog event to the engine",
		Long: `Submit one catalog event. Fields are passed as key=value pairs.

Events and their fields:
  item_added, item_changed, item_deleted, item_trashed   kind, path
  item_moved, item_renamed                                kind, old_path, new_path
  item_copied                                             kind, source_path, new_path
  subtree_added                                           path
  permissions_changed                                     path, recursive, kind (optional)

The zone field is optional; it defaults to the first segment of the path.

By default the event goes through the admin socket and the jobs it
produced are printed. With --events it is streamed to the events socket
instead, the way a catalog would send it.

Examples:
  catindex submit item_added -f kind=data_object -f path=/demo/home/alice/new.csv
  catindex submit item_moved -f kind=collection -f old_path=/demo/home/alice/reports -f new_path=/demo/home/alice/archive
  catindex submit permissions_changed -f path=/demo/home/bob -f recursive=true --events`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.fields, "field", "f", nil, "Event field as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.viaEvents, "events", false, "Send over the events socket")
	addJSONFlag(cmd.Flags(), &opts.jsonOutput)
	return cmd
}

func runSubmit(ctx context.Context, cmd *cobra.Command, name string, opts submitOptions) error {
	fields, err := parseFields(opts.fields)
	if err != nil {
		return err
	}

	if opts.viaEvents {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Validate locally; the listener drops malformed events silently.
		if _, err := events.Decode(name, fields); err != nil {
			return err
		}
		if cfg.Daemon.EventsSocketPath == "" {
			return fmt.Errorf("daemon.events_socket_path is not configured")
		}
		env := events.Envelope{Name: name, Fields: fields}
		if err := events.Send(ctx, cfg.Daemon.EventsSocketPath, env); err != nil {
			return err
		}
		output.New(cmd.OutOrStdout()).Successf("Event %s sent to %s", name, cfg.Daemon.EventsSocketPath)
		return nil
	}

	return withClient(ctx, func(ctx context.Context, c *daemon.Client) error {
		res, err := c.Submit(ctx, name, fields)
		if err != nil {
			return err
		}
		if opts.jsonOutput {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		renderSubmit(cmd.OutOrStdout(), res)
		return nil
	})
}

func renderSubmit(w io.Writer, res *daemon.SubmitResult) {
	out := output.New(w)
	if len(res.Jobs) == 0 {
		out.Warning("Event accepted, no jobs scheduled")
		return
	}
	out.Successf("%d jobs scheduled", len(res.Jobs))
	rows := make([][]string, 0, len(res.Jobs))
	for _, j := range res.Jobs {
		rows = append(rows, []string{string(j.Type), string(j.ItemKind), j.Path})
	}
	out.Table([]string{"TYPE", "KIND", "PATH"}, rows)
}
