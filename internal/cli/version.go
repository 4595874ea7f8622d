package cli

import (
	"fmt"
	goruntime "runtime"

	"github.com/gzhole/gatekeeper/internal/patterns"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/gzhole/gatekeeper/internal/cli.Version=...".
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print gatekeeper and deny-pattern versions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gatekeeper %s (%s, %s %s/%s) patterns %s\n",
			Version, GitCommit, goruntime.Version(), goruntime.GOOS, goruntime.GOARCH, patterns.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
