package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"civictrack-be/geo"
	"civictrack-be/middlewares"
	"civictrack-be/models"
	"civictrack-be/repository"
	"civictrack-be/services"

	"github.com/gin-gonic/gin"
)

type IssueController struct {
	issues       *services.IssueService
	flags        *services.FlagService
	defaultLimit int
}

func NewIssueController(issues *services.IssueService, flags *services.FlagService, defaultLimit int) *IssueController {
	return &IssueController{issues: issues, flags: flags, defaultLimit: defaultLimit}
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer"})
		return 0, false
	}
	return n, true
}

func queryFloat(c *gin.Context, key string) (*float64, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a number"})
		return nil, false
	}
	return &f, true
}

// parseListQuery reads lat, lon, radius, category, status, search, sort, page
// and limit. "all" is accepted as no category or status filter.
func (ctr *IssueController) parseListQuery(c *gin.Context) (services.ListQuery, bool) {
	q := services.ListQuery{
		Search: c.Query("search"),
		Sort:   repository.IssueSort(c.Query("sort")),
	}
	if category := c.Query("category"); category != "all" {
		q.Category = models.IssueCategory(category)
	}
	if status := c.Query("status"); status != "all" {
		q.Status = models.IssueStatus(status)
	}

	var ok bool
	if q.Page, ok = queryInt(c, "page", 1); !ok {
		return q, false
	}
	if q.Limit, ok = queryInt(c, "limit", ctr.defaultLimit); !ok {
		return q, false
	}

	lat, ok := queryFloat(c, "lat")
	if !ok {
		return q, false
	}
	lon, ok := queryFloat(c, "lon")
	if !ok {
		return q, false
	}
	if q.RadiusKm, ok = queryFloat(c, "radius"); !ok {
		return q, false
	}

	switch {
	case lat != nil && lon != nil:
		q.Center = &geo.Point{Latitude: *lat, Longitude: *lon}
	case lat != nil || lon != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lon must be given together"})
		return q, false
	}
	return q, true
}

// ListIssues returns the visible issues, nearest first when a center is given.
func (ctr *IssueController) ListIssues(c *gin.Context) {
	q, ok := ctr.parseListQuery(c)
	if !ok {
		return
	}
	ctx, cancel := storageContext(c)
	defer cancel()

	list, err := ctr.issues.ListVisibleIssues(ctx, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// RecentIssues returns the most recent visible issues for the map view.
func (ctr *IssueController) RecentIssues(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	ctx, cancel := storageContext(c)
	defer cancel()

	issues, err := ctr.issues.RecentIssues(ctx, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

type createIssueRequest struct {
	Title       string               `json:"title" binding:"required,max=200"`
	Description string               `json:"description" binding:"required,max=1000"`
	Category    models.IssueCategory `json:"category" binding:"required,issuecategory"`
	Latitude    *float64             `json:"latitude" binding:"required"`
	Longitude   *float64             `json:"longitude" binding:"required"`
	Address     *string              `json:"address,omitempty" binding:"omitempty,max=200"`
	ImageURL    *string              `json:"imageUrl,omitempty" binding:"omitempty,url"`
	Anonymous   bool                 `json:"anonymous"`
}

// CreateIssue handles the creation of a new issue
func (ctr *IssueController) CreateIssue(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input createIssueRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := storageContext(c)
	defer cancel()

	issue, err := ctr.issues.CreateIssue(ctx, userID, services.NewIssue{
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Latitude:    *input.Latitude,
		Longitude:   *input.Longitude,
		Address:     input.Address,
		ImageURL:    input.ImageURL,
		Anonymous:   input.Anonymous,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

// GetIssue retrieves an issue by its ID. Hidden issues are only shown to
// admins and their reporter.
func (ctr *IssueController) GetIssue(c *gin.Context) {
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}

	var viewer *services.Viewer
	if userID, ok := currentUserID(c); ok {
		viewer = &services.Viewer{
			UserID: userID,
			Admin:  models.Role(c.GetString(middlewares.RoleKey)) == models.RoleAdmin,
		}
	}

	ctx, cancel := storageContext(c)
	defer cancel()

	detail, err := ctr.issues.GetIssue(ctx, issueID, viewer)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// FlagIssue records the user's flag. The body is optional.
func (ctr *IssueController) FlagIssue(c *gin.Context) {
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var input struct {
		Reason *string `json:"reason,omitempty"`
	}
	// The reason is optional, so an empty body is fine even when its length
	// is unknown up front.
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := storageContext(c)
	defer cancel()

	result, err := ctr.flags.SubmitFlag(ctx, issueID, userID, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Issue flagged successfully",
		"issueId":   result.IssueID,
		"flagCount": result.FlagCount,
		"isHidden":  result.IsHidden,
	})
}
