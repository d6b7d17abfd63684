package models

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// UnknownDate is stored when the source page shows no publication date.
const UnknownDate = "Tarih Yok"

// Announcement is one item published on the monitored page.
type Announcement struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
	Date  string `json:"date"` // Source-native text, not necessarily parseable
}

// Snapshot is the persisted view of the most recent successful fetch.
// Items are ordered most-recent-first, as they appear on the source page.
type Snapshot struct {
	Items     []Announcement `json:"items"`
	CheckedAt time.Time      `json:"checked_at"`
}

// IsEmpty reports whether the snapshot holds no announcements.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

// Bounded returns a copy of the snapshot holding at most max items.
// A non-positive max leaves the list untouched.
func (s Snapshot) Bounded(max int) Snapshot {
	if max <= 0 || len(s.Items) <= max {
		return s
	}
	items := make([]Announcement, max)
	copy(items, s.Items[:max])
	return Snapshot{Items: items, CheckedAt: s.CheckedAt}
}

// Top returns the first n announcements.
func (s Snapshot) Top(n int) []Announcement {
	if n <= 0 || n >= len(s.Items) {
		return s.Items
	}
	return s.Items[:n]
}

// NewAnnouncement builds an announcement from raw scraped text.
// The title is normalized, an empty date becomes UnknownDate and the
// identifier is derived with Identify.
func NewAnnouncement(title, link, date string) Announcement {
	title = NormalizeTitle(title)
	date = NormalizeTitle(date)
	if date == "" {
		date = UnknownDate
	}
	return Announcement{
		ID:    Identify(title, link),
		Title: title,
		Link:  link,
		Date:  date,
	}
}

// NormalizeTitle collapses runs of whitespace and trims the result.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Identify derives the stable identity of an announcement.
//
// The trailing path segment of link wins when it is non-empty; the raw query
// is kept with it because detail pages are often addressed as Detay?id=N.
// Otherwise the ID is the first 16 hex chars of SHA-256(title + "\n" + link).
// The result never depends on list position or fetch time.
func Identify(title, link string) string {
	if tail := linkTail(link); tail != "" {
		return tail
	}
	hash := sha256.Sum256([]byte(title + "\n" + link))
	return hex.EncodeToString(hash[:])[:16]
}

func linkTail(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.EscapedPath(), "/")
	seg := p[strings.LastIndex(p, "/")+1:]
	if seg == "" {
		return ""
	}
	if u.RawQuery != "" {
		seg += "?" + u.RawQuery
	}
	return seg
}
