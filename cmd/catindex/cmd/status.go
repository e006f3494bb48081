package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine status",
		Long: `Display the state of the running engine:
  - Worker state and job totals
  - Queue length and cached leases
  - Events received over the events socket
  - Index locations and document count`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), st)
				}
				renderStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}

	addJSONFlag(cmd.Flags(), &jsonOutput)
	return cmd
}

func renderStatus(w io.Writer, st *daemon.StatusResult) {
	out := output.New(w)

	out.Header("Engine")
	out.KeyValue("pid", st.PID)
	out.KeyValue("uptime", st.Uptime)
	out.KeyValue("state", st.State)
	out.KeyValue("queue", st.QueueLength)
	out.KeyValue("leases", st.Leases)
	out.Newline()

	out.Header("Worker")
	out.KeyValue("executed", st.Worker.Executed)
	out.KeyValue("succeeded", st.Worker.Succeeded)
	out.KeyValue("dropped", st.Worker.Dropped)
	out.KeyValue("retried", st.Worker.Retried)
	out.KeyValue("flushed", st.Worker.Flushed)
	if !st.Worker.LastJobAt.IsZero() {
		out.KeyValue("last job", st.Worker.LastJobAt.Local().Format(time.DateTime))
	}
	out.Newline()

	out.Header("Events")
	out.KeyValue("published", st.Events.Published)
	out.KeyValue("invalid", st.Events.Invalid)
	out.Newline()

	out.Header("Index")
	out.KeyValue("documents", st.Index.Documents)
	out.KeyValue("ingest", pathOrMemory(st.Index.IngestPath))
	if !st.Index.Shared {
		out.KeyValue("query", pathOrMemory(st.Index.QueryPath))
	}
	out.KeyValue("refreshes", st.Index.Refreshes)
	if st.DeadLetters != nil {
		out.KeyValue("dead letters", *st.DeadLetters)
	}

	if st.Worker.Dropped > 0 {
		out.Newline()
		out.Warning(fmt.Sprintf("%d jobs dropped, see 'catindex dead-letters' or the engine log", st.Worker.Dropped))
	}
}

func pathOrMemory(p string) string {
	if p == "" {
		return "(in-memory)"
	}
	return p
}
