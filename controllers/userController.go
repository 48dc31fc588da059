package controllers

import (
	"net/http"

	"civictrack-be/services"

	"github.com/gin-gonic/gin"
)

// UserController serves the signed-in user's own data.
type UserController struct {
	users  *services.UserService
	issues *services.IssueService
}

func NewUserController(users *services.UserService, issues *services.IssueService) *UserController {
	return &UserController{users: users, issues: issues}
}

// Me retrieves the authenticated user's information
func (ctr *UserController) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx, cancel := storageContext(c)
	defer cancel()

	user, err := ctr.users.GetUser(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userResponse(user))
}

// MyIssues lists every issue the user reported, hidden ones included.
func (ctr *UserController) MyIssues(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	ctx, cancel := storageContext(c)
	defer cancel()

	issues, err := ctr.issues.ListMyIssues(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}
