// Package chat answers bot commands sent to the messaging webhook.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mfenderov/duyuru-watch/internal/notifier"
	"github.com/mfenderov/duyuru-watch/pkg/models"
)

// Loader reads the current snapshot.
type Loader interface {
	Load(ctx context.Context) (models.Snapshot, error)
}

// Fetcher fetches announcements directly from the source.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Announcement, error)
}

// Options configures a Handler.
type Options struct {
	DefaultCount int // items returned by a bare /duyuru
	MaxCount     int
}

// Handler turns commands into replies. Replies are read-only: a fresh fetch
// made for an empty snapshot is never persisted, the reconciliation cycle
// stays the only writer.
type Handler struct {
	loader    Loader
	fetcher   Fetcher // nil disables the fresh fetch
	replier   notifier.Replier
	formatter *notifier.Formatter
	opts      Options
}

// New creates a Handler.
func New(loader Loader, fetcher Fetcher, replier notifier.Replier, formatter *notifier.Formatter, opts Options) *Handler {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 3
	}
	if opts.MaxCount < opts.DefaultCount {
		opts.MaxCount = max(10, opts.DefaultCount)
	}
	return &Handler{
		loader:    loader,
		fetcher:   fetcher,
		replier:   replier,
		formatter: formatter,
		opts:      opts,
	}
}

// Handle answers the message in u, if any. Updates without text or chat
// are ignored.
func (h *Handler) Handle(ctx context.Context, u tgbotapi.Update) error {
	if u.Message == nil || u.Message.Chat == nil || u.Message.Chat.ID == 0 || strings.TrimSpace(u.Message.Text) == "" {
		return nil
	}
	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	reply := h.Reply(ctx, u.Message.Text)

	if err := h.replier.SendTo(ctx, chatID, reply); err != nil {
		return fmt.Errorf("failed to reply to chat %s: %w", chatID, err)
	}
	return nil
}

// Reply returns the answer to a command text.
func (h *Handler) Reply(ctx context.Context, text string) string {
	command, arg := parseCommand(text)
	msgs := h.formatter.Messages()

	switch command {
	case "/start":
		return msgs.Welcome
	case "/duyuru":
		return h.formatter.List(h.Latest(ctx, h.count(arg)))
	default:
		return msgs.Help
	}
}

// Latest returns the first n announcements of the snapshot. When the
// snapshot is empty or unreadable it fetches from the source instead.
func (h *Handler) Latest(ctx context.Context, n int) []models.Announcement {
	snap, err := h.loader.Load(ctx)
	if err != nil {
		slog.Warn("failed to load snapshot for chat reply", "error", err)
	}
	if !snap.IsEmpty() {
		return snap.Top(n)
	}
	if h.fetcher == nil {
		return nil
	}

	items, err := h.fetcher.Fetch(ctx)
	if err != nil {
		slog.Warn("fresh fetch for chat reply failed", "error", err)
		return nil
	}
	return models.Snapshot{Items: items}.Top(n)
}

func (h *Handler) count(arg string) int {
	if arg == "" {
		return h.opts.DefaultCount
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return h.opts.DefaultCount
	}
	return min(n, h.opts.MaxCount)
}

// parseCommand splits "/Duyuru@SomeBot 5" into "/duyuru" and "5".
func parseCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	command := strings.ToLower(fields[0])
	if i := strings.IndexByte(command, '@'); i > 0 {
		command = command[:i]
	}
	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}
	return command, arg
}
