package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the stored snapshot",
	Long: `Clear the stored snapshot. The next cycle treats every announcement on the
page as unseen; follow with 'duyuru-watch check --silent' to resync without
notifying.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newOneShotApp(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.controller.Reset(ctx); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Snapshot cleared.")
	return nil
}
