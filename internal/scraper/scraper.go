package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mfenderov/duyuru-watch/pkg/models"
)

// Config holds fetcher configuration.
type Config struct {
	URL            string        // Page being monitored, used in errors
	BaseURL        string        // Origin relative links are resolved against
	MaxAttempts    int           // Attempts over the primary source
	Backoff        time.Duration // Wait before the second attempt, doubled after each
	MinTitleLength int           // Minimum title length in runes
	Strategies     []Strategy    // Extraction chain, DefaultStrategies if nil
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFallback sets a source tried once after every primary attempt failed.
func WithFallback(src PageSource) Option {
	return func(f *Fetcher) { f.fallback = src }
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

// Fetcher retrieves the announcements page and turns it into announcements.
type Fetcher struct {
	config   Config
	base     *url.URL
	source   PageSource
	fallback PageSource
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Fetcher reading from source.
func New(config Config, source PageSource, opts ...Option) (*Fetcher, error) {
	if source == nil {
		return nil, fmt.Errorf("page source is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = config.URL
	}
	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", config.BaseURL)
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Backoff == 0 {
		config.Backoff = 2 * time.Second
	}
	if config.MinTitleLength <= 0 {
		config.MinTitleLength = 5
	}
	if config.Strategies == nil {
		config.Strategies = DefaultStrategies(nil)
	}

	f := &Fetcher{
		config: config,
		base:   base,
		source: source,
		sleep:  sleepContext,
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Fetch returns the announcements currently on the page, in page order.
// It retries with exponential backoff and fails with *FetchError once the
// attempts (and the fallback source, if any) are exhausted.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.Announcement, error) {
	var (
		lastErr   error
		attempts  int
		noRecords bool // the primary page loaded but nothing parsed
	)

	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		attempts++
		items, err := f.attempt(ctx, f.source)
		if err == nil {
			return items, nil
		}
		lastErr = err
		noRecords = noRecords || errors.Is(err, ErrNoRecords)
		if ctx.Err() != nil {
			break
		}

		if attempt < f.config.MaxAttempts {
			wait := f.config.Backoff * (1 << uint(attempt-1))
			slog.Warn("fetch attempt failed, retrying",
				"url", f.config.URL,
				"attempt", attempt,
				"max_attempts", f.config.MaxAttempts,
				"backoff", wait,
				"error", err)
			if err := f.sleep(ctx, wait); err != nil {
				break
			}
		}
	}

	if f.fallback != nil && ctx.Err() == nil {
		attempts++
		slog.Warn("primary source exhausted, trying fallback", "url", f.config.URL, "error", lastErr)
		items, err := f.attempt(ctx, f.fallback)
		if err == nil {
			return items, nil
		}
		if noRecords && !errors.Is(err, ErrNoRecords) {
			err = fmt.Errorf("%w (fallback: %v)", ErrNoRecords, err)
		}
		lastErr = err
	}

	if ctx.Err() != nil && !errors.Is(lastErr, ctx.Err()) {
		lastErr = fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
	}
	return nil, &FetchError{
		Kind:     kindOf(lastErr),
		URL:      f.config.URL,
		Attempts: attempts,
		Err:      lastErr,
	}
}

func (f *Fetcher) attempt(ctx context.Context, src PageSource) ([]models.Announcement, error) {
	body, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	items, strategy := f.Parse(body)
	if len(items) == 0 {
		return nil, ErrNoRecords
	}
	slog.Debug("parsed announcements", "strategy", strategy, "count", len(items))
	return items, nil
}

// Parse runs the strategy chain over body and returns the plausible
// announcements of the first strategy that yields any, plus its name.
func (f *Fetcher) Parse(body []byte) ([]models.Announcement, string) {
	page := &Page{Body: body, Base: f.base}
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		page.Doc = doc
	}

	for _, s := range f.config.Strategies {
		items := f.plausible(s.Extract(page))
		if len(items) > 0 {
			return items, s.Name
		}
		slog.Debug("strategy yielded nothing", "strategy", s.Name)
	}
	return nil, ""
}

// plausible validates and normalizes candidates, dropping the ones without
// a long enough title or a resolvable link. Repeated IDs keep the first.
func (f *Fetcher) plausible(candidates []Candidate) []models.Announcement {
	seen := make(map[string]bool, len(candidates))
	var out []models.Announcement
	for _, c := range candidates {
		title := models.NormalizeTitle(c.Title)
		if utf8.RuneCountInString(title) < f.config.MinTitleLength {
			continue
		}
		link := f.resolve(c.Href)
		if link == "" {
			continue
		}
		a := models.NewAnnouncement(title, link, c.Date)
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

func (f *Fetcher) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := f.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
