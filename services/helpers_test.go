package services

import (
	"context"
	"testing"
	"time"

	"civictrack-be/models"
	"civictrack-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var baseTime = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	return repository.NewMemoryStore().Store()
}

type issueOption func(*models.Issue)

func at(lat, lon float64) issueOption {
	return func(i *models.Issue) {
		i.Latitude = lat
		i.Longitude = lon
	}
}

func reportedBy(id primitive.ObjectID) issueOption {
	return func(i *models.Issue) { i.ReporterID = &id }
}

func createdAt(ts time.Time) issueOption {
	return func(i *models.Issue) { i.CreatedAt = ts }
}

func hidden() issueOption {
	return func(i *models.Issue) { i.IsHidden = true }
}

func withCategory(c models.IssueCategory) issueOption {
	return func(i *models.Issue) { i.Category = c }
}

func withFlags(n int) issueOption {
	return func(i *models.Issue) { i.FlagCount = n }
}

// seedIssue stores an issue directly, bypassing validation.
func seedIssue(t *testing.T, store *repository.Store, opts ...issueOption) models.Issue {
	t.Helper()
	issue := models.Issue{
		ID:          primitive.NewObjectID(),
		Title:       "Pothole on Main St",
		Description: "Deep pothole near the crossing",
		Category:    models.Roads,
		Status:      models.Reported,
		Latitude:    40.7128,
		Longitude:   -74.0060,
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
	}
	for _, opt := range opts {
		opt(&issue)
	}
	if err := store.Issues.Create(context.Background(), &issue); err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	return issue
}

func ptr[T any](v T) *T { return &v }
