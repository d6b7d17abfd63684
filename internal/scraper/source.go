package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"
)

// PageSource retrieves the raw markup of the announcements page.
type PageSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPConfig holds the HTTP page source configuration.
type HTTPConfig struct {
	URL            string
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration // Per request, not per retry budget
}

// HTTPSource fetches the page with a colly collector.
type HTTPSource struct {
	config HTTPConfig
}

// NewHTTPSource creates an HTTP page source.
func NewHTTPSource(config HTTPConfig) *HTTPSource {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "duyuru-watch/1.0"
	}
	return &HTTPSource{config: config}
}

// Fetch performs a single GET of the configured URL.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.config.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.config.Timeout)

	var (
		body     []byte
		fetchErr error
		aborted  bool
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			aborted = true
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if s.config.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", s.config.AcceptLanguage)
		}
		r.Headers.Set("Cache-Control", "max-age=0")
	})

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		slog.Debug("fetched page", "url", r.Request.URL.String(), "status", r.StatusCode, "size", len(r.Body))
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{StatusCode: r.StatusCode}
			return
		}
		fetchErr = err
	})

	err := c.Visit(s.config.URL)
	switch {
	case aborted:
		return nil, ctx.Err()
	case fetchErr != nil:
		return nil, fetchErr
	case err != nil:
		return nil, fmt.Errorf("failed to visit %s: %w", s.config.URL, err)
	}
	return body, nil
}
