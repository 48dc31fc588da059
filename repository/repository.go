// Package repository holds the storage interfaces used by the services and
// their MongoDB and in-memory implementations.
package repository

//go:generate mockgen -destination=mocks/mock_repository.go -package=mocks civictrack-be/repository IssueRepository,FlagRepository,Transactor

import (
	"context"
	"errors"
	"time"

	"civictrack-be/geo"
	"civictrack-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// IssueFilter narrows issue queries. Zero values mean "any".
type IssueFilter struct {
	Category      models.IssueCategory
	Status        models.IssueStatus
	Search        string
	ReporterID    *primitive.ObjectID
	IncludeHidden bool
	FlaggedOnly   bool
}

type IssueSort string

const (
	SortNewest      IssueSort = "newest"
	SortOldest      IssueSort = "oldest"
	SortMostFlagged IssueSort = "most_flagged"
)

// Page selects a window of a sorted result set. Limit <= 0 means no limit.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Skip() int64 {
	if p.Number <= 1 || p.Limit <= 0 {
		return 0
	}
	return int64((p.Number - 1) * p.Limit)
}

// FlagTally is an issue's moderation state right after a flag was counted.
type FlagTally struct {
	FlagCount int  `bson:"flagCount"`
	IsHidden  bool `bson:"isHidden"`
}

type IssueRepository interface {
	Create(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	// Find returns one page of matching issues and the total match count.
	Find(ctx context.Context, filter IssueFilter, sort IssueSort, page Page) ([]models.Issue, int64, error)
	// FindWithinBoundingBox returns every matching issue whose coordinates lie
	// inside box. Callers apply the exact distance filter.
	FindWithinBoundingBox(ctx context.Context, box geo.BoundingBox, filter IssueFilter) ([]models.Issue, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus) (*models.Issue, error)
	// AtomicIncrementFlagCount adds one to the issue's flag count and returns
	// the issue's state as of that write.
	AtomicIncrementFlagCount(ctx context.Context, id primitive.ObjectID) (FlagTally, error)
	SetHidden(ctx context.Context, id primitive.ObjectID, hidden bool) error
	// Stats aggregates issue counts. Daily[i] counts issues created within the
	// 24 hours starting at days[i].
	Stats(ctx context.Context, days []time.Time, topFlagged int) (*IssueStats, error)
}

// IssueStats is the raw aggregate data behind the admin analytics.
type IssueStats struct {
	ByCategory []models.CategoryCount
	Daily      []int64
	TopFlagged []models.FlaggedIssue
	Total      int64
	Open       int64
	Hidden     int64
}

type FlagRepository interface {
	// Insert stores the flag and returns ErrDuplicate when the user already
	// flagged the issue.
	Insert(ctx context.Context, flag *models.Flag) error
	Exists(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error)
	ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Flag, error)
	Count(ctx context.Context) (int64, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error
}

// Transactor runs fn as a single unit: either every write inside fn is
// applied or none is. fn must use the context it is given.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories backed by one datastore.
type Store struct {
	Issues IssueRepository
	Flags  FlagRepository
	Users  UserRepository
	Tx     Transactor
}
