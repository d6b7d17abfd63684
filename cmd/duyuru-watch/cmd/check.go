package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/mfenderov/duyuru-watch/internal/reconcile"
	"github.com/spf13/cobra"
)

var checkSilent bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one reconciliation cycle",
	Long: `Fetch the announcements page, notify about unseen announcements and store
the result.

Examples:
  # Regular cycle
  duyuru-watch check

  # Store the current page without notifying (resync after a reset)
  duyuru-watch check --silent`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkSilent, "silent", false, "store the result without sending notifications")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newOneShotApp(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.controller.Run(ctx, reconcile.RunOptions{Silent: checkSilent})
	if res != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Cycle:    %s\n", res.CycleID)
		fmt.Fprintf(out, "Status:   %s\n", res.Status)
		fmt.Fprintf(out, "Total:    %d\n", res.Total)
		fmt.Fprintf(out, "New:      %d\n", res.New)
		fmt.Fprintf(out, "Notified: %d\n", res.Notified)
		fmt.Fprintf(out, "Duration: %v\n", res.Duration)
		for _, de := range res.DeliveryErrors {
			fmt.Fprintf(out, "  Warning: %v\n", de)
		}
		if res.Status == reconcile.StatusDegraded {
			fmt.Fprintf(out, "  Source unavailable: %v\n", res.Err)
		}
	}
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}
	return nil
}
