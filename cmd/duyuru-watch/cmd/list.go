package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	listLimit  int
	listFormat string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the stored announcements",
	Long: `Print the announcements from the snapshot store, newest first.

Examples:
  duyuru-watch list --limit 5

  # JSON output for scripting
  duyuru-watch list --format json`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().IntVar(&listLimit, "limit", 10, "Maximum number of announcements, 0 for all")
	listCmd.Flags().StringVar(&listFormat, "format", "text", "Output format: text or json")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newOneShotApp(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	items := snap.Top(listLimit)
	out := cmd.OutOrStdout()

	if listFormat == "json" {
		output, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "No announcements stored.")
		return nil
	}

	if !snap.CheckedAt.IsZero() {
		fmt.Fprintf(out, "Last check: %s\n\n", snap.CheckedAt.Local().Format("2006-01-02 15:04:05"))
	}
	for i, item := range items {
		fmt.Fprintf(out, "─── %d ───\n", i+1)
		fmt.Fprintf(out, "Title: %s\n", item.Title)
		fmt.Fprintf(out, "Date:  %s\n", item.Date)
		fmt.Fprintf(out, "Link:  %s\n", item.Link)
		fmt.Fprintf(out, "ID:    %s\n\n", item.ID)
	}
	return nil
}
