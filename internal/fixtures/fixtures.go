// Package fixtures provides sample announcements for seeding a store.
package fixtures

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/mfenderov/duyuru-watch/internal/snapshot"
	"github.com/mfenderov/duyuru-watch/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed announcements.yaml
var announcementsYAML []byte

type file struct {
	Announcements []struct {
		Title string `yaml:"title"`
		Link  string `yaml:"link"`
		Date  string `yaml:"date"`
	} `yaml:"announcements"`
}

// Announcements returns the embedded sample announcements.
func Announcements() ([]models.Announcement, error) {
	return Parse(announcementsYAML)
}

// Parse decodes a fixtures document.
func Parse(data []byte) ([]models.Announcement, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	out := make([]models.Announcement, 0, len(f.Announcements))
	for _, a := range f.Announcements {
		out = append(out, models.NewAnnouncement(a.Title, a.Link, a.Date))
	}
	return out, nil
}

// Seed replaces the stored snapshot with the sample announcements.
func Seed(ctx context.Context, store snapshot.Store, now time.Time) (models.Snapshot, error) {
	items, err := Announcements()
	if err != nil {
		return models.Snapshot{}, err
	}
	snap := models.Snapshot{Items: items, CheckedAt: now}
	if err := store.Save(ctx, snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to seed snapshot: %w", err)
	}
	return snap, nil
}
