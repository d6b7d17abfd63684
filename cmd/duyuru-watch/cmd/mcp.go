package cmd

import (
	"context"
	"fmt"

	"github.com/mfenderov/duyuru-watch/internal/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the MCP server on stdio.

Tools:
  - latest_announcements: stored announcements, newest first
  - check_announcements: run one reconciliation cycle now

Example:
  duyuru-watch mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(mcp.Config{
		Name:     cfg.MCP.Name,
		Version:  cfg.MCP.Version,
		MaxLimit: cfg.Store.MaxItems,
	}, a.store, a.controller)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
