package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/daemon"
	"github.com/Aman-CERP/catindex/internal/output"
	"github.com/Aman-CERP/catindex/internal/searchindex"
)

func newSearchCmd() *cobra.Command {
	var (
		params     daemon.SearchParams
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search the index",
		Long: `Search indexed catalog items.

Text is matched against the free-text field built from item names,
titles, descriptions, comments and summaries. Filters narrow results by
zone, subtree, item kind and readers.

Examples:
  catindex search "quarterly report"
  catindex search --under /demo/home/alice --kind data_object
  catindex search report --user 101 --group 900`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				params.Text = args[0]
			}
			return withClient(cmd.Context(), func(ctx context.Context, c *daemon.Client) error {
				res, err := c.Search(ctx, params)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				renderSearch(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&params.Zone, "zone", "z", "", "Restrict to one zone")
	fs.StringVar(&params.Under, "under", "", "Restrict to a collection and its descendants")
	fs.StringVar(&params.Kind, "kind", "", "Restrict to collection or data_object")
	fs.StringSliceVar(&params.Users, "user", nil, "Only items readable by these user ids")
	fs.StringSliceVar(&params.Groups, "group", nil, "Only items readable by these group ids")
	fs.IntVarP(&params.Limit, "limit", "n", 20, "Maximum number of hits")
	fs.IntVar(&params.Offset, "offset", 0, "Number of hits to skip")
	addJSONFlag(fs, &jsonOutput)

	return cmd
}

func renderSearch(w io.Writer, res *searchindex.Response) {
	out := output.New(w)
	if len(res.Hits) == 0 {
		out.Status("🔍", "No matches")
		return
	}

	rows := make([][]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		rows = append(rows, []string{fmt.Sprintf("%.3f", h.Score), shortKind(h.Kind), h.Path})
	}
	out.Table([]string{"SCORE", "KIND", "PATH"}, rows)
	out.Newline()
	out.Dim(fmt.Sprintf("%d of %d hits", len(res.Hits), res.Total))
}

func shortKind(kind string) string {
	switch {
	case strings.HasPrefix(kind, "coll"):
		return "C"
	case strings.HasPrefix(kind, "data"):
		return "D"
	default:
		return kind
	}
}
