package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		link  string
		want  string
	}{
		{
			name:  "path tail",
			title: "Tercüman Başvuruları",
			link:  "https://ankara.adalet.gov.tr/Sayfalar/Duyurular/2026-yili-tercuman.aspx",
			want:  "2026-yili-tercuman.aspx",
		},
		{
			name:  "trailing slash ignored",
			title: "Duyuru",
			link:  "https://example.gov.tr/duyurular/123/",
			want:  "123",
		},
		{
			name:  "query kept with tail",
			title: "Duyuru",
			link:  "https://example.gov.tr/Duyuru/Detay?id=42",
			want:  "Detay?id=42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identify(tt.title, tt.link))
		})
	}
}

func TestIdentify_HashFallback(t *testing.T) {
	id := Identify("Site ana sayfası", "https://example.gov.tr/")
	require.Len(t, id, 16)
	assert.Equal(t, id, Identify("Site ana sayfası", "https://example.gov.tr/"), "hash must be deterministic")
	assert.NotEqual(t, id, Identify("Başka başlık", "https://example.gov.tr/"))

	assert.NotEmpty(t, Identify("", ""), "identify never returns an empty id")
}

func TestIdentify_IndependentOfPosition(t *testing.T) {
	link := "https://example.gov.tr/duyuru/ihale-ilani"
	first := NewAnnouncement("İhale İlanı", link, "01.02.2025")
	again := NewAnnouncement("  İhale   İlanı (güncellendi) ", link, "")

	assert.Equal(t, first.ID, again.ID)
}

func TestNewAnnouncement_Normalizes(t *testing.T) {
	a := NewAnnouncement("  Personel\n\t Alımı  İlanı ", "https://example.gov.tr/a/b", "   ")

	assert.Equal(t, "Personel Alımı İlanı", a.Title)
	assert.Equal(t, UnknownDate, a.Date)
	assert.Equal(t, "b", a.ID)
}

func TestSnapshot_Bounded(t *testing.T) {
	s := Snapshot{Items: []Announcement{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	b := s.Bounded(2)
	require.Len(t, b.Items, 2)
	assert.Equal(t, "a", b.Items[0].ID)
	assert.Len(t, s.Items, 3, "original must not be modified")

	assert.Len(t, s.Bounded(0).Items, 3)
	assert.Len(t, s.Top(1), 1)
	assert.Len(t, s.Top(10), 3)
}

func TestAnnouncement_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Announcement{ID: "x", Title: "t", Link: "l", Date: "d"})
	require.NoError(t, err)

	for _, field := range []string{`"id"`, `"title"`, `"link"`, `"date"`} {
		assert.Contains(t, string(data), field)
	}
}
