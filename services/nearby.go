package services

import (
	"sort"

	"civictrack-be/geo"
	"civictrack-be/models"
)

// FilterWithinRadius keeps the visible candidates whose Haversine distance
// from center is at most radiusKm, annotates each with that distance and
// sorts them nearest first. Equal distances order newest first, then by id,
// so pages are stable.
func FilterWithinRadius(center geo.Point, radiusKm float64, candidates []models.Issue) []models.IssueWithDistance {
	nearby := make([]models.IssueWithDistance, 0, len(candidates))
	for _, issue := range candidates {
		if issue.IsHidden {
			continue
		}
		d := geo.Haversine(center, issue.Location())
		if d > radiusKm {
			continue
		}
		distance := d
		nearby = append(nearby, models.IssueWithDistance{Issue: issue, DistanceKm: &distance})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		a, b := nearby[i], nearby[j]
		if *a.DistanceKm != *b.DistanceKm {
			return *a.DistanceKm < *b.DistanceKm
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.Hex() < b.ID.Hex()
	})
	return nearby
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
