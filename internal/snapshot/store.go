// Package snapshot persists the most recent successful fetch of the
// announcements page together with its check time.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mfenderov/duyuru-watch/pkg/models"
)

// Store persists one snapshot. A missing snapshot loads as an empty
// snapshot with a nil error. Save replaces the items and the check time in
// a single atomic write.
type Store interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snap models.Snapshot) error
	Reset(ctx context.Context) error
	Close() error
}

// ErrNotFound is used inside backends for a missing key or object.
var ErrNotFound = errors.New("snapshot not found")

// StoreError reports an unreachable backend or malformed stored data.
type StoreError struct {
	Op      string // load, save, reset, open
	Backend string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("snapshot %s failed (%s): %v", e.Op, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Bounded wraps s so that every Save keeps at most max items.
func Bounded(s Store, max int) Store {
	if max <= 0 {
		return s
	}
	return &bounded{Store: s, max: max}
}

type bounded struct {
	Store
	max int
}

func (b *bounded) Save(ctx context.Context, snap models.Snapshot) error {
	return b.Store.Save(ctx, snap.Bounded(b.max))
}

// document is the single-object encoding used by the S3 and Elasticsearch
// backends.
type document struct {
	Items     []models.Announcement `json:"items"`
	CheckedAt string                `json:"checked_at"`
}

type rawDocument struct {
	Items     json.RawMessage `json:"items"`
	CheckedAt string          `json:"checked_at"`
}

func newDocument(snap models.Snapshot) document {
	items := snap.Items
	if items == nil {
		items = []models.Announcement{}
	}
	return document{Items: items, CheckedAt: EncodeTime(snap.CheckedAt)}
}

func decodeDocument(data []byte) (models.Snapshot, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to decode snapshot document: %w", err)
	}
	items, err := DecodeItems(raw.Items)
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{Items: items, CheckedAt: DecodeTime(raw.CheckedAt)}, nil
}

// EncodeItems encodes announcements as a JSON array.
func EncodeItems(items []models.Announcement) ([]byte, error) {
	if items == nil {
		items = []models.Announcement{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode announcements: %w", err)
	}
	return data, nil
}

type storedAnnouncement struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
	Date  string `json:"date"`
}

// DecodeItems decodes a stored announcement list. It accepts a JSON array or
// a JSON string holding one (clients that serialize values themselves end
// up double-encoding). Records missing an id get one from models.Identify,
// records missing a date get models.UnknownDate, and records with neither
// title nor link are dropped.
func DecodeItems(data []byte) ([]models.Announcement, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("failed to decode announcements: %w", err)
		}
		data = bytes.TrimSpace([]byte(inner))
		if len(data) == 0 || data[0] != '[' {
			return nil, fmt.Errorf("failed to decode announcements: string does not hold a list")
		}
	}

	var raw []storedAnnouncement
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode announcements: %w", err)
	}

	items := make([]models.Announcement, 0, len(raw))
	for _, r := range raw {
		title := models.NormalizeTitle(r.Title)
		link := strings.TrimSpace(r.Link)
		if title == "" && link == "" {
			continue
		}
		a := models.Announcement{ID: r.ID, Title: title, Link: link, Date: models.NormalizeTitle(r.Date)}
		if a.ID == "" {
			a.ID = models.Identify(title, link)
		}
		if a.Date == "" {
			a.Date = models.UnknownDate
		}
		items = append(items, a)
	}
	return items, nil
}

// EncodeTime formats a check time for storage. The zero time encodes as "".
func EncodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// DecodeTime parses a stored check time, tolerating surrounding quotes.
// Unparseable values decode as the zero time.
func DecodeTime(s string) time.Time {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
