package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pimsync/backend/cmd/pimsync/commands"
)

var rootCmd = &cobra.Command{
	Use:   "pimsync",
	Short: "Sync product data from a PIM JSON-RPC endpoint",
	Long: `pimsync enumerates products from a PIM JSON-RPC endpoint, projects each
record into flat destination fields and writes them to the configured
field store.

Configuration is read from config.toml (./ or /etc/pimsync) and from
PIMSYNC_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Config file, default search when empty")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
