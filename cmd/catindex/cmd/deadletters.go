package cmd

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/output"
)

func newDeadLettersCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "dead-letters",
		Aliases: []string{"dlq"},
		Short:   "List jobs the worker dropped",
		Long: `List the most recent dropped jobs. Requires deadletter.enabled in the
engine configuration. Entries are informational; nothing is retried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				res, err := c.DeadLetters(ctx, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				renderDeadLetters(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of entries to show")
	addJSONFlag(cmd.Flags(), &jsonOutput)
	return cmd
}

func renderDeadLetters(w io.Writer, res *daemon.DeadLettersResult) {
	out := output.New(w)
	out.KeyValue("dropped", res.Count)
	if len(res.Entries) == 0 {
		return
	}
	out.Newline()

	rows := make([][]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		rows = append(rows, []string{
			e.FailedAt.Local().Format(time.DateTime), string(e.Type), e.Path, e.Reason,
		})
	}
	out.Table([]string{"FAILED", "TYPE", "PATH", "REASON"}, rows)
}
