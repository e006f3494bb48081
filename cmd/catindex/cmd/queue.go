package cmd

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/output"
)

func newQueueCmd() *cobra.Command {
	var (
		sample     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the job queue length and its oldest jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				q, err := c.Queue(ctx, sample)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), q)
				}
				renderQueue(cmd.OutOrStdout(), q)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&sample, "sample", "n", daemon.DefaultQueueSample, "Number of queued jobs to show")
	addJSONFlag(cmd.Flags(), &jsonOutput)
	return cmd
}

func renderQueue(w io.Writer, q *daemon.QueueResult) {
	out := output.New(w)
	out.KeyValue("queued", q.Length)
	if len(q.Sample) == 0 {
		return
	}
	out.Newline()

	rows := make([][]string, 0, len(q.Sample))
	for _, j := range q.Sample {
		rows = append(rows, []string{
			string(j.Type), string(j.ItemKind), j.Zone, j.Path,
			j.EnqueuedAt.Local().Format(time.TimeOnly),
		})
	}
	out.Table([]string{"TYPE", "KIND", "ZONE", "PATH", "ENQUEUED"}, rows)
	if q.Length > len(q.Sample) {
		out.Dim("...")
	}
}
