// Package diff computes which announcements have not been seen before.
package diff

import "github.com/mfenderov/duyuru-watch/pkg/models"

// Unseen returns the announcements of current whose ID does not occur in
// previous, in current's order. Identity is the ID alone: a changed title or
// date on a known ID is not a new announcement.
func Unseen(current, previous []models.Announcement) []models.Announcement {
	seen := make(map[string]struct{}, len(previous))
	for _, a := range previous {
		seen[a.ID] = struct{}{}
	}

	unseen := make([]models.Announcement, 0)
	for _, a := range current {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		unseen = append(unseen, a)
	}
	return unseen
}
