package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mfenderov/duyuru-watch/internal/chat"
	"github.com/mfenderov/duyuru-watch/internal/config"
	"github.com/mfenderov/duyuru-watch/internal/notifier"
	"github.com/mfenderov/duyuru-watch/internal/reconcile"
	"github.com/mfenderov/duyuru-watch/internal/scraper"
	"github.com/mfenderov/duyuru-watch/internal/snapshot"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg        config.Config
	store      snapshot.Store
	fetcher    *scraper.Fetcher
	formatter  *notifier.Formatter
	dispatcher *notifier.Dispatcher
	controller *reconcile.Controller
	telegram   *notifier.Telegram // nil without a bot token
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := snapshot.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	fetcher, err := newFetcher(cfg.Source)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		store:     store,
		fetcher:   fetcher,
		formatter: newFormatter(cfg.Notify.Messages),
	}

	channel := a.newNotifier(cfg.Notify)
	var replier notifier.Replier
	if a.telegram != nil {
		replier = a.telegram
	}
	a.dispatcher = notifier.NewDispatcher(channel, replier, cfg.Notify.Delay)

	a.controller, err = reconcile.New(fetcher, store, a.dispatcher, reconcile.Options{
		Formatter:       a.formatter,
		BaselinePolicy:  reconcile.BaselinePolicy(cfg.Reconcile.BaselinePolicy),
		StoreReadPolicy: reconcile.StoreReadPolicy(cfg.Reconcile.StoreReadPolicy),
		AlertOnFailure:  cfg.Reconcile.AlertOnFailure,
		MaxItems:        cfg.Store.MaxItems,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	return a, nil
}

// newOneShotApp is newApp for commands that exit after one operation. Their
// state has to survive the process, so the memory backend is refused.
func newOneShotApp(ctx context.Context, cfg config.Config) (*app, error) {
	if cfg.Store.Backend == "memory" {
		return nil, fmt.Errorf("store backend %q does not persist between runs, configure sqlite, redis, s3 or elasticsearch", cfg.Store.Backend)
	}
	return newApp(ctx, cfg)
}

// chatHandler returns nil when no bot token is configured, since replies
// would have nowhere to go.
func (a *app) chatHandler() *chat.Handler {
	if a.telegram == nil {
		return nil
	}
	return chat.New(a.store, a.fetcher, a.dispatcher, a.formatter, chat.Options{
		DefaultCount: a.cfg.Notify.ChatReplyCount,
	})
}

func (a *app) Close() error {
	return a.store.Close()
}

func newFetcher(src config.Source) (*scraper.Fetcher, error) {
	var opts []scraper.Option
	if src.Browser.Enabled {
		opts = append(opts, scraper.WithFallback(scraper.NewBrowserSource(scraper.BrowserConfig{
			URL:            src.URL,
			RemoteURL:      src.Browser.RemoteURL,
			UserAgent:      src.UserAgent,
			AcceptLanguage: src.AcceptLanguage,
			Stealth:        src.Browser.Stealth,
			Timeout:        src.Browser.Timeout,
		})))
		slog.Debug("browser fallback enabled", "remote", src.Browser.RemoteURL != "")
	}

	primary := scraper.NewHTTPSource(scraper.HTTPConfig{
		URL:            src.URL,
		UserAgent:      src.UserAgent,
		AcceptLanguage: src.AcceptLanguage,
		Timeout:        src.Timeout,
	})

	f, err := scraper.New(scraper.Config{
		URL:            src.URL,
		BaseURL:        src.BaseURL,
		MaxAttempts:    src.MaxAttempts,
		Backoff:        src.Backoff,
		MinTitleLength: src.MinTitleLength,
		Strategies:     scraper.DefaultStrategies(src.LinkKeywords),
	}, primary, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}
	return f, nil
}

func newFormatter(m config.Messages) *notifier.Formatter {
	return notifier.NewFormatter(notifier.Messages{
		NewHeader:  m.NewHeader,
		ListHeader: m.ListHeader,
		LinkText:   m.LinkText,
		Footer:     m.Footer,
		Empty:      m.Empty,
		Welcome:    m.Welcome,
		Help:       m.Help,
		Alert:      m.Alert,
	})
}

// newNotifier builds the outbound channels. Without any configured channel
// messages are only logged.
func (a *app) newNotifier(cfg config.Notify) notifier.Notifier {
	var channels notifier.Multi

	if cfg.Telegram.Token != "" {
		a.telegram = notifier.NewTelegram(notifier.TelegramConfig{
			Token:   cfg.Telegram.Token,
			ChatID:  cfg.Telegram.ChatID,
			APIURL:  cfg.Telegram.APIURL,
			Timeout: cfg.Timeout,
		})
		if cfg.Telegram.ChatID != "" {
			channels = append(channels, a.telegram)
		} else {
			slog.Warn("telegram chat id not set, notifications are not sent to telegram")
		}
	}
	if cfg.Webhook.URL != "" {
		channels = append(channels, notifier.NewWebhook(cfg.Webhook.URL, cfg.Timeout))
	}

	switch len(channels) {
	case 0:
		slog.Warn("no notification channel configured, messages are only logged")
		return notifier.Log{}
	case 1:
		return channels[0]
	default:
		return channels
	}
}
