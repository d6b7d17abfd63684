package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfenderov/duyuru-watch/internal/fixtures"
	"github.com/mfenderov/duyuru-watch/internal/httpapi"
	"github.com/mfenderov/duyuru-watch/pkg/models"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Routes:
  GET      /health
  GET      /api/announcements      stored announcements, always 200
  GET|POST /api/cron               run one cycle (Authorization: Bearer <cron secret>)
  POST     /api/admin/check        {"reset":bool,"force":bool,"silent":bool}
  POST     /api/admin/seed         load sample announcements
  POST     /api/telegram/webhook   /start and /duyuru [n] commands

Example:
  DUYURU_SERVER_CRON_SECRET=changeme duyuru-watch serve --addr :8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cfg.Server.CronSecret == "" {
		slog.Warn("cron secret not set, trigger and admin routes reject every request")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	deps := httpapi.Deps{
		Store:  a.store,
		Runner: a.controller,
		Seed: func(ctx context.Context) (models.Snapshot, error) {
			return fixtures.Seed(ctx, a.store, time.Now())
		},
	}
	if h := a.chatHandler(); h != nil {
		deps.Chat = h
	}

	srv := httpapi.NewServer(httpapi.Config{
		Addr:          cfg.Server.Addr,
		CronSecret:    cfg.Server.CronSecret,
		WebhookSecret: cfg.Notify.Telegram.WebhookSecret,
		CycleTimeout:  cfg.Server.CycleTimeout,
	}, deps, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", cfg.Server.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
