package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfenderov/duyuru-watch/internal/fixtures"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample announcements into the store",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newOneShotApp(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := fixtures.Seed(ctx, a.store, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d sample announcements loaded into %s store.\n", len(snap.Items), a.cfg.Store.Backend)
	return nil
}
