package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, stamped with -ldflags "-X github.com/amora-chat/amora/adapter/cli.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, Version)
			return
		}
		fmt.Fprintf(out, "amora %s (%s, built %s, %s)\n", Version, Commit, BuildDate, runtime.Version())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version")
	rootCmd.AddCommand(versionCmd)
}
