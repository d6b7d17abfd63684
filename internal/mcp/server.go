package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mfenderov/duyuru-watch/internal/reconcile"
	"github.com/mfenderov/duyuru-watch/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	MaxLimit int // Upper bound for latest_announcements, default 50
}

// Loader reads the current snapshot.
type Loader interface {
	Load(ctx context.Context) (models.Snapshot, error)
}

// Runner runs one reconciliation cycle.
type Runner interface {
	Run(ctx context.Context, opts reconcile.RunOptions) (*reconcile.Result, error)
}

// Server wraps the MCP server around the snapshot store and the controller.
type Server struct {
	mcpServer *server.MCPServer
	store     Loader
	runner    Runner
	maxLimit  int
}

// latestResult is the JSON payload of latest_announcements.
type latestResult struct {
	Announcements []models.Announcement `json:"announcements"`
	LastCheck     string                `json:"last_check,omitempty"`
	Total         int                   `json:"total"`
}

// checkResult is the JSON payload of check_announcements.
type checkResult struct {
	CycleID        string   `json:"cycle_id"`
	Status         string   `json:"status"`
	Total          int      `json:"total"`
	New            int      `json:"new"`
	Notified       int      `json:"notified"`
	DeliveryErrors []string `json:"delivery_errors,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// NewServer creates a new MCP server with announcement tools. runner may be
// nil, in which case check_announcements is not registered.
func NewServer(config Config, store Loader, runner Runner) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 50
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		store:     store,
		runner:    runner,
		maxLimit:  config.MaxLimit,
	}

	latestTool := mcp.NewTool("latest_announcements",
		mcp.WithDescription("List the most recent court announcements from the last successful check, newest first."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of announcements to return (default: 10)"),
		),
	)
	mcpServer.AddTool(latestTool, s.latestHandler)

	if runner != nil {
		checkTool := mcp.NewTool("check_announcements",
			mcp.WithDescription("Fetch the announcements page now, notify subscribers about unseen items and store the result."),
		)
		mcpServer.AddTool(checkTool, s.checkHandler)
	}

	return s, nil
}

func (s *Server) latestHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	latest, err := s.handleLatest(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load announcements: %v", err)), nil
	}

	result, err := json.Marshal(latest)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal announcements: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

func (s *Server) checkHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	check, err := s.handleCheck(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("check failed: %v", err)), nil
	}

	result, err := json.Marshal(check)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// handleLatest returns up to limit announcements from the stored snapshot.
func (s *Server) handleLatest(ctx context.Context, limit int) (*latestResult, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	items := snap.Top(min(limit, s.maxLimit))
	if items == nil {
		items = []models.Announcement{}
	}

	res := &latestResult{Announcements: items, Total: len(items)}
	if !snap.CheckedAt.IsZero() {
		res.LastCheck = snap.CheckedAt.UTC().Format(time.RFC3339)
	}
	return res, nil
}

// handleCheck runs one cycle. A degraded cycle is reported, not failed.
func (s *Server) handleCheck(ctx context.Context) (*checkResult, error) {
	res, err := s.runner.Run(ctx, reconcile.RunOptions{})
	if res == nil {
		return nil, err
	}

	out := &checkResult{
		CycleID:  res.CycleID,
		Status:   string(res.Status),
		Total:    res.Total,
		New:      res.New,
		Notified: res.Notified,
	}
	for _, de := range res.DeliveryErrors {
		out.DeliveryErrors = append(out.DeliveryErrors, de.Error())
	}
	switch {
	case err != nil:
		return nil, err
	case res.Err != nil:
		out.Error = res.Err.Error()
	}
	return out, nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
