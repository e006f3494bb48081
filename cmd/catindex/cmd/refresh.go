package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/output"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recreate the index client handles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				res, err := c.Refresh(ctx)
				if err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("Index clients refreshed (%d refreshes)", res.Refreshes)
				return nil
			})
		},
	}
}
