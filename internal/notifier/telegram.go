package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramConfig holds Telegram Bot API configuration.
type TelegramConfig struct {
	Token   string
	ChatID  string // Default destination for Notify
	APIURL  string // Bot API base, https://api.telegram.org by default
	Timeout time.Duration
}

// Telegram sends messages through the Bot API sendMessage method.
type Telegram struct {
	config   TelegramConfig
	client   *http.Client
	endpoint string
}

// NewTelegram creates a Telegram channel. No request is made until the
// first message is sent.
func NewTelegram(config TelegramConfig) *Telegram {
	if config.APIURL == "" {
		config.APIURL = "https://api.telegram.org"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Telegram{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		endpoint: strings.TrimRight(config.APIURL, "/") + "/bot%s/%s",
	}
}

// Notify sends message to the configured chat.
func (t *Telegram) Notify(ctx context.Context, message string) error {
	return t.SendTo(ctx, t.config.ChatID, message)
}

// SendTo sends an HTML message to chatID, which is either a numeric chat id
// or a public @channel name.
func (t *Telegram) SendTo(ctx context.Context, chatID, message string) error {
	if t.config.Token == "" || chatID == "" {
		return &DeliveryError{Channel: "telegram", Err: errors.New("bot token or chat id not configured")}
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, message)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, message)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot(ctx).Request(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return &DeliveryError{Channel: "telegram", StatusCode: apiErr.Code, Err: errors.New(apiErr.Message)}
		}
		return &DeliveryError{Channel: "telegram", Err: t.redact(err)}
	}
	return nil
}

// bot returns a client whose requests are bound to ctx. The library builds
// its requests without a context, so the binding happens in the transport.
func (t *Telegram) bot(ctx context.Context) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  t.config.Token,
		Client: contextClient{ctx: ctx, client: t.client},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(t.endpoint)
	return bot
}

type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// redact keeps the bot token out of errors that embed the request URL.
func (t *Telegram) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = strings.ReplaceAll(ue.URL, t.config.Token, "<token>")
	}
	return err
}
