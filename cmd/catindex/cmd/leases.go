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

func newLeasesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "leases",
		Short: "List cached catalog leases",
		Long: `List the per-zone catalog sessions the engine holds. Tokens are shown
as short fingerprints only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				res, err := c.Leases(ctx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				renderLeases(cmd.OutOrStdout(), res, time.Now())
				return nil
			})
		},
	}

	addJSONFlag(cmd.Flags(), &jsonOutput)
	cmd.AddCommand(newEvictCmd())
	return cmd
}

func newEvictCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "evict [zone]",
		Short: "Drop a cached lease so the next job fetches a new one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zone := ""
			if len(args) == 1 {
				zone = args[0]
			}
			if (zone == "") == !all {
				return fmt.Errorf("give a zone or --all")
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				res, err := c.EvictLease(ctx, zone, all)
				if err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("%d leases evicted", res.Evicted)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Evict every lease")
	return cmd
}

func renderLeases(w io.Writer, res *daemon.LeasesResult, now time.Time) {
	out := output.New(w)
	if len(res.Leases) == 0 {
		out.Status("", "No cached leases")
		return
	}

	rows := make([][]string, 0, len(res.Leases))
	for _, l := range res.Leases {
		left := l.Expiry.Sub(now).Truncate(time.Second)
		expires := left.String()
		if left <= 0 {
			expires = "expired"
		}
		rows = append(rows, []string{l.Zone, expires, l.Fingerprint})
	}
	out.Table([]string{"ZONE", "EXPIRES IN", "TOKEN"}, rows)
}
