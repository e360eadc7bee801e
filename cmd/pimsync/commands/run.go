package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pimsync/backend/internal/application/pimsync"
	"github.com/pimsync/backend/internal/domain/integration"
)

// RunCmd runs one sync and prints its summary as JSON
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sync against the PIM endpoint",
	Long: `Run one sync against the PIM endpoint and print the run summary as JSON.

Examples:
  pimsync run                                   # full sync over every page
  pimsync run --mode incremental                # since the last complete successful run
  pimsync run --one-page --page-size 10         # first page only, never a starting point
  pimsync run --mode incremental --since 2026-01-01T00:00:00Z
  pimsync run --mode grouped --page-size 50`,
	RunE: runSync,
}

var (
	runModeFlag      string
	runSinceFlag     string
	runOnePageFlag   bool
	runStartPageFlag int
	runPageSizeFlag  int
)

func init() {
	RunCmd.Flags().StringVar(&runModeFlag, "mode", "full", "Sync mode: full, incremental or grouped")
	RunCmd.Flags().StringVar(&runSinceFlag, "since", "", "RFC3339 timestamp bounding an incremental run")
	RunCmd.Flags().BoolVar(&runOnePageFlag, "one-page", false, "Fetch only the first requested page instead of every page")
	RunCmd.Flags().IntVar(&runStartPageFlag, "start-page", 0, "First page to fetch")
	RunCmd.Flags().IntVar(&runPageSizeFlag, "page-size", 0, "Page size, overrides sync.page_size")
}

func parseRunFlags() (pimsync.RunRequest, error) {
	mode, err := integration.ParseSyncMode(runModeFlag)
	if err != nil {
		return pimsync.RunRequest{}, fmt.Errorf("--mode: %w", err)
	}
	req := pimsync.RunRequest{
		Mode:      mode,
		OnePage:   runOnePageFlag,
		StartPage: runStartPageFlag,
		PageSize:  runPageSizeFlag,
	}
	if runSinceFlag != "" {
		since, err := time.Parse(time.RFC3339, runSinceFlag)
		if err != nil {
			return pimsync.RunRequest{}, fmt.Errorf("--since: %w", err)
		}
		req.UpdatedSince = &since
	}
	return req, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	req, err := parseRunFlags()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	result, runErr := a.service.Run(ctx, req)
	if result != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to write run summary: %w", err)
		}
	}
	return runErr
}
