package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/catindex/internal/output"
	"github.com/Aman-CERP/catindex/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var jsonOutput, shortOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show which catindex build is installed",
		Long: `Show the catindex release with the commit it was built from, whether the
checkout had local changes, and the toolchain and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			switch {
			case shortOutput:
				_, err := fmt.Fprintln(w, version.Short())
				return err
			case jsonOutput:
				return writeJSON(w, version.GetInfo())
			}
			printBuild(w, version.GetInfo())
			return nil
		},
	}

	addJSONFlag(cmd.Flags(), &jsonOutput)
	cmd.Flags().BoolVar(&shortOutput, "short", false, "Print only the release")
	cmd.MarkFlagsMutuallyExclusive("json", "short")
	return cmd
}

func printBuild(w io.Writer, info version.BuildInfo) {
	out := output.New(w)
	out.Header("catindex " + info.Version)

	commit := info.Commit
	if info.Modified {
		commit += " (local changes)"
	}
	out.KeyValue("commit", commit)
	out.KeyValue("built", info.Date)
	if info.VCS != "" {
		out.KeyValue("vcs", info.VCS)
	}
	if info.Module != "" {
		out.KeyValue("module", info.Module)
	}
	out.KeyValue("go", info.GoVersion)
	out.KeyValue("platform", info.OS+"/"+info.Arch)
}
