package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civictrack-be/models"
	"civictrack-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	analyticsDays       = 7
	analyticsTopFlagged = 5
)

// AdminService holds the moderation and reporting operations reserved for
// administrators.
type AdminService struct {
	issues repository.IssueRepository
	flags  repository.FlagRepository
	limits Limits
	now    func() time.Time
}

func NewAdminService(issues repository.IssueRepository, flags repository.FlagRepository, limits Limits) *AdminService {
	return &AdminService{
		issues: issues,
		flags:  flags,
		limits: limits,
		now:    time.Now,
	}
}

func notFoundIssue(err error, id primitive.ObjectID) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: issue %s", ErrNotFound, id.Hex())
	}
	return err
}

func (s *AdminService) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.IssueStatus) (*models.Issue, error) {
	if !status.Valid() {
		return nil, invalidArgument("invalid status %q", status)
	}
	issue, err := s.issues.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, notFoundIssue(err, id)
	}
	return issue, nil
}

// Unhide makes a hidden issue visible again. The flag count is kept, so the
// next flag hides the issue again.
func (s *AdminService) Unhide(ctx context.Context, id primitive.ObjectID) error {
	if err := s.issues.SetHidden(ctx, id, false); err != nil {
		return notFoundIssue(err, id)
	}
	return nil
}

// ModerationQueue lists flagged issues, most flagged first, hidden ones included.
func (s *AdminService) ModerationQueue(ctx context.Context, page, limit int) (*IssueList, error) {
	if page < 1 {
		return nil, invalidArgument("page must be at least 1")
	}
	if limit < 1 || limit > s.limits.MaxPageLimit {
		return nil, invalidArgument("limit must be between 1 and %d", s.limits.MaxPageLimit)
	}

	issues, total, err := s.issues.Find(ctx, repository.IssueFilter{
		IncludeHidden: true,
		FlaggedOnly:   true,
	}, repository.SortMostFlagged, repository.Page{Number: page, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list flagged issues: %w", err)
	}

	items := make([]models.IssueWithDistance, 0, len(issues))
	for _, issue := range issues {
		items = append(items, models.IssueWithDistance{Issue: issue})
	}
	return &IssueList{
		Items:       items,
		TotalCount:  total,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
	}, nil
}

func (s *AdminService) ListFlags(ctx context.Context, issueID primitive.ObjectID) ([]models.Flag, error) {
	if _, err := s.issues.FindByID(ctx, issueID); err != nil {
		return nil, notFoundIssue(err, issueID)
	}
	flags, err := s.flags.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	return flags, nil
}

// Analytics summarizes issues by category, per day over the last week, the
// most flagged issues and overall totals.
func (s *AdminService) Analytics(ctx context.Context) (*models.Analytics, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	days := make([]time.Time, 0, analyticsDays)
	for i := analyticsDays - 1; i >= 0; i-- {
		days = append(days, today.AddDate(0, 0, -i))
	}

	stats, err := s.issues.Stats(ctx, days, analyticsTopFlagged)
	if err != nil {
		return nil, fmt.Errorf("issue stats: %w", err)
	}
	totalFlags, err := s.flags.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count flags: %w", err)
	}

	last7Days := make([]models.DailyCount, len(days))
	for i, day := range days {
		last7Days[i] = models.DailyCount{Date: day.Format("2006-01-02")}
		if i < len(stats.Daily) {
			last7Days[i].Count = stats.Daily[i]
		}
	}

	return &models.Analytics{
		IssuesByCategory: stats.ByCategory,
		Last7Days:        last7Days,
		TopFlaggedIssues: stats.TopFlagged,
		TotalIssues:      stats.Total,
		TotalFlags:       totalFlags,
		OpenIssues:       stats.Open,
		HiddenIssues:     stats.Hidden,
	}, nil
}
