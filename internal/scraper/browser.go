package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig holds the headless browser page source configuration.
type BrowserConfig struct {
	URL            string
	RemoteURL      string // DevTools websocket URL; empty launches a local Chrome
	UserAgent      string
	AcceptLanguage string
	Stealth        bool
	Timeout        time.Duration
}

// BrowserSource renders the page in a headless Chrome. It is slow and is only
// used as a fallback once plain HTTP attempts are exhausted.
type BrowserSource struct {
	config BrowserConfig
}

// NewBrowserSource creates a browser page source.
func NewBrowserSource(config BrowserConfig) *BrowserSource {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &BrowserSource{config: config}
}

// Fetch navigates to the page and returns the rendered HTML.
func (b *BrowserSource) Fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	controlURL := b.config.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Headless(true).
			NoSandbox(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		defer l.Kill()
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect browser: %w", err)
	}
	if b.config.RemoteURL == "" {
		defer browser.Close()
	}

	var (
		page *rod.Page
		err  error
	)
	if b.config.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	defer page.Close()

	if b.config.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      b.config.UserAgent,
			AcceptLanguage: b.config.AcceptLanguage,
		})
		if err != nil {
			slog.Warn("failed to set browser user agent", "error", err)
		}
	}

	if err := page.Navigate(b.config.URL); err != nil {
		return nil, fmt.Errorf("failed to navigate %s: %w", b.config.URL, err)
	}
	if err := page.WaitLoad(); err != nil {
		slog.Warn("browser wait load failed", "url", b.config.URL, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}
	slog.Debug("rendered page in browser", "url", b.config.URL, "size", len(html))
	return []byte(html), nil
}
