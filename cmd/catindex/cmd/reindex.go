package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/output"
)

func newReindexCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reindex [zone...]",
		Short: "Delete the index and rebuild it from the catalog",
		Long: `Delete and recreate the search index, reapply the field mapping and
queue a full subtree pass for every zone given. With no zones, every zone
the engine knows about is rebuilt.

Searches return nothing until the rebuild has drained, so --yes is required.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reindex empties the search index; pass --yes to continue")
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				res, err := c.Reindex(ctx, args)
				if err != nil {
					return err
				}
				out := output.New(cmd.OutOrStdout())
				if len(res.Zones) == 0 {
					out.Warning("Index recreated, but no zones are known to rebuild")
					return nil
				}
				out.Successf("Index recreated, %d jobs queued for %s", res.Enqueued, strings.Join(res.Zones, ", "))
				return nil
			})
		},
	}

	addYesFlag(cmd.Flags(), &yes)
	return cmd
}
