package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../commands.Version=..."
var Version = "dev"

// VersionCmd prints the build version
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pimsync %s (%s)\n", Version, runtime.Version())
	},
}
