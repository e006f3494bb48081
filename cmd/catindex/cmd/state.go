package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/output"
)

func newStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state [active|sleep|flush|flush_sleep|flush_active]",
		Short: "Show or change the worker state",
		Long: `Without an argument, print the worker state. With one, switch to it.

States:
  active        execute one queued job per tick
  sleep         queue jobs without executing them
  flush         discard every queued job, every tick, until changed
  flush_sleep   discard the queue once, then sleep
  flush_active  discard the queue once, then resume`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"active", "sleep", "flush", "flush_sleep", "flush_active"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				out := output.New(cmd.OutOrStdout())
				if len(args) == 0 {
					st, err := c.Status(ctx)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), st.State)
					return err
				}
				res, err := c.SetState(ctx, args[0])
				if err != nil {
					return err
				}
				out.Successf("Worker state %s → %s", res.Previous, res.State)
				return nil
			})
		},
	}
}
