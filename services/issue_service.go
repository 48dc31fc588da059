package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civictrack-be/geo"
	"civictrack-be/models"
	"civictrack-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 1000
	maxAddressLength     = 200
	defaultRecentLimit   = 19
)

// ListQuery selects the issues shown to the public. With a Center the
// results are the issues within the radius, nearest first; without one they
// are sorted by creation time.
type ListQuery struct {
	Center   *geo.Point
	RadiusKm *float64
	Category models.IssueCategory
	Status   models.IssueStatus
	Search   string
	Sort     repository.IssueSort
	Page     int
	Limit    int
}

type IssueList struct {
	Items       []models.IssueWithDistance `json:"issues"`
	TotalCount  int64                      `json:"totalIssues"`
	TotalPages  int                        `json:"totalPages"`
	CurrentPage int                        `json:"currentPage"`
}

// NewIssue is the input for reporting an issue.
type NewIssue struct {
	Title       string
	Description string
	Category    models.IssueCategory
	Latitude    float64
	Longitude   float64
	Address     *string
	ImageURL    *string
	Anonymous   bool
}

// Viewer identifies who is reading an issue. A nil viewer is anonymous.
type Viewer struct {
	UserID primitive.ObjectID
	Admin  bool
}

type IssueDetail struct {
	models.Issue
	UserHasFlagged bool `json:"userHasFlagged"`
}

type IssueService struct {
	issues repository.IssueRepository
	flags  repository.FlagRepository
	limits Limits
	now    func() time.Time
}

func NewIssueService(issues repository.IssueRepository, flags repository.FlagRepository, limits Limits) *IssueService {
	return &IssueService{
		issues: issues,
		flags:  flags,
		limits: limits,
		now:    time.Now,
	}
}

func (s *IssueService) validateQuery(q *ListQuery) error {
	if q.Page < 1 {
		return invalidArgument("page must be at least 1")
	}
	if q.Limit < 1 || q.Limit > s.limits.MaxPageLimit {
		return invalidArgument("limit must be between 1 and %d", s.limits.MaxPageLimit)
	}
	if q.Category != "" && !q.Category.Valid() {
		return invalidArgument("unknown category %q", q.Category)
	}
	if q.Status != "" && !q.Status.Valid() {
		return invalidArgument("unknown status %q", q.Status)
	}
	switch q.Sort {
	case "":
		q.Sort = repository.SortNewest
	case repository.SortNewest, repository.SortOldest:
	default:
		return invalidArgument("unknown sort %q", q.Sort)
	}

	if q.Center == nil {
		if q.RadiusKm != nil {
			return invalidArgument("radius requires a center point")
		}
		return nil
	}
	if err := q.Center.Validate(); err != nil {
		return invalidArgument("%v", err)
	}
	if q.RadiusKm != nil {
		r := *q.RadiusKm
		if !(r >= s.limits.MinRadiusKm && r <= s.limits.MaxRadiusKm) {
			return invalidArgument("radius must be between %v and %v km", s.limits.MinRadiusKm, s.limits.MaxRadiusKm)
		}
	}
	return nil
}

// ListVisibleIssues returns one page of non-hidden issues. It has no side
// effects.
func (s *IssueService) ListVisibleIssues(ctx context.Context, q ListQuery) (*IssueList, error) {
	if err := s.validateQuery(&q); err != nil {
		return nil, err
	}

	filter := repository.IssueFilter{
		Category: q.Category,
		Status:   q.Status,
		Search:   strings.TrimSpace(q.Search),
	}

	if q.Center != nil {
		return s.listNearby(ctx, q, filter)
	}

	issues, total, err := s.issues.Find(ctx, filter, q.Sort, repository.Page{Number: q.Page, Limit: q.Limit})
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	items := make([]models.IssueWithDistance, 0, len(issues))
	for _, issue := range issues {
		items = append(items, models.IssueWithDistance{Issue: issue})
	}
	return &IssueList{
		Items:       items,
		TotalCount:  total,
		TotalPages:  totalPages(total, q.Limit),
		CurrentPage: q.Page,
	}, nil
}

// listNearby prunes candidates with the bounding box in storage, then keeps
// only those within the exact radius.
func (s *IssueService) listNearby(ctx context.Context, q ListQuery, filter repository.IssueFilter) (*IssueList, error) {
	radius := s.limits.DefaultRadiusKm
	if q.RadiusKm != nil {
		radius = *q.RadiusKm
	}

	box := geo.NewBoundingBox(*q.Center, radius)
	candidates, err := s.issues.FindWithinBoundingBox(ctx, box, filter)
	if err != nil {
		return nil, fmt.Errorf("find nearby issues: %w", err)
	}

	nearby := FilterWithinRadius(*q.Center, radius, candidates)
	total := int64(len(nearby))

	return &IssueList{
		Items:       paginate(nearby, q.Page, q.Limit),
		TotalCount:  total,
		TotalPages:  totalPages(total, q.Limit),
		CurrentPage: q.Page,
	}, nil
}

func validateNewIssue(in NewIssue) error {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	switch {
	case title == "":
		return invalidArgument("title is required")
	case len(title) > maxTitleLength:
		return invalidArgument("title must be at most %d characters", maxTitleLength)
	case description == "":
		return invalidArgument("description is required")
	case len(description) > maxDescriptionLength:
		return invalidArgument("description must be at most %d characters", maxDescriptionLength)
	case !in.Category.Valid():
		return invalidArgument("invalid category %q", in.Category)
	}
	if in.Address != nil && len(*in.Address) > maxAddressLength {
		return invalidArgument("address must be at most %d characters", maxAddressLength)
	}
	if err := (geo.Point{Latitude: in.Latitude, Longitude: in.Longitude}).Validate(); err != nil {
		return invalidArgument("%v", err)
	}
	return nil
}

// CreateIssue records a new report. Anonymous reports keep no reporter.
func (s *IssueService) CreateIssue(ctx context.Context, reporterID primitive.ObjectID, in NewIssue) (*models.Issue, error) {
	if err := validateNewIssue(in); err != nil {
		return nil, err
	}

	now := s.now()
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    in.Category,
		Status:      models.Reported,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Address:     in.Address,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !in.Anonymous {
		reporter := reporterID
		issue.ReporterID = &reporter
	}

	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return issue, nil
}

func (s *IssueService) findIssue(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: issue %s", ErrNotFound, id.Hex())
		}
		return nil, err
	}
	return issue, nil
}

// GetIssue returns an issue. Hidden issues are only visible to admins and
// to their reporter.
func (s *IssueService) GetIssue(ctx context.Context, id primitive.ObjectID, viewer *Viewer) (*IssueDetail, error) {
	issue, err := s.findIssue(ctx, id)
	if err != nil {
		return nil, err
	}

	if issue.IsHidden && (viewer == nil || (!viewer.Admin && !issue.ReportedBy(viewer.UserID))) {
		return nil, fmt.Errorf("%w: issue %s", ErrNotFound, id.Hex())
	}

	detail := &IssueDetail{Issue: *issue}
	if viewer != nil {
		flagged, err := s.flags.Exists(ctx, id, viewer.UserID)
		if err != nil {
			return nil, err
		}
		detail.UserHasFlagged = flagged
	}
	return detail, nil
}

// ListMyIssues returns every issue the user reported, hidden ones included.
func (s *IssueService) ListMyIssues(ctx context.Context, userID primitive.ObjectID) ([]models.Issue, error) {
	issues, _, err := s.issues.Find(ctx, repository.IssueFilter{
		ReporterID:    &userID,
		IncludeHidden: true,
	}, repository.SortNewest, repository.Page{})
	if err != nil {
		return nil, fmt.Errorf("list issues by reporter: %w", err)
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return issues, nil
}

// RecentIssues returns the newest visible issues for the map view.
func (s *IssueService) RecentIssues(ctx context.Context, limit int) ([]models.Issue, error) {
	if limit < 1 || limit > s.limits.MaxPageLimit {
		limit = defaultRecentLimit
	}
	issues, _, err := s.issues.Find(ctx, repository.IssueFilter{}, repository.SortNewest, repository.Page{Number: 1, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list recent issues: %w", err)
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return issues, nil
}
