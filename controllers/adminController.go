package controllers

import (
	"net/http"

	"civictrack-be/models"
	"civictrack-be/services"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	admin        *services.AdminService
	defaultLimit int
}

func NewAdminController(admin *services.AdminService, defaultLimit int) *AdminController {
	return &AdminController{admin: admin, defaultLimit: defaultLimit}
}

// Analytics returns analytical data about issues and flags
func (ctr *AdminController) Analytics(c *gin.Context) {
	ctx, cancel := storageContext(c)
	defer cancel()

	analytics, err := ctr.admin.Analytics(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// FlaggedIssues is the moderation queue, most flagged first.
func (ctr *AdminController) FlaggedIssues(c *gin.Context) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", ctr.defaultLimit)
	if !ok {
		return
	}
	ctx, cancel := storageContext(c)
	defer cancel()

	list, err := ctr.admin.ModerationQueue(ctx, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (ctr *AdminController) IssueFlags(c *gin.Context) {
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}
	ctx, cancel := storageContext(c)
	defer cancel()

	flags, err := ctr.admin.ListFlags(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}
	if flags == nil {
		flags = []models.Flag{}
	}
	c.JSON(http.StatusOK, flags)
}

func (ctr *AdminController) UpdateStatus(c *gin.Context) {
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}
	var input struct {
		Status models.IssueStatus `json:"status" binding:"required,issuestatus"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := storageContext(c)
	defer cancel()

	issue, err := ctr.admin.UpdateStatus(ctx, issueID, input.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// Unhide makes a hidden issue visible again. Its flag count is kept.
func (ctr *AdminController) Unhide(c *gin.Context) {
	issueID, ok := issueIDParam(c)
	if !ok {
		return
	}
	ctx, cancel := storageContext(c)
	defer cancel()

	if err := ctr.admin.Unhide(ctx, issueID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue is visible again"})
}
