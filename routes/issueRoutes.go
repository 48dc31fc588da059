package routes

import (
	"civictrack-be/config"
	"civictrack-be/controllers"
	"civictrack-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, issueController *controllers.IssueController, secret []byte, limiter middlewares.Counter, limits config.RateLimitSettings) {
	issue := r.Group("/api/issue")
	{
		issue.GET("", middlewares.OptionalAuth(secret), issueController.ListIssues)
		issue.GET("/recent", issueController.RecentIssues)
		issue.POST("/create",
			middlewares.AuthMiddleware(secret),
			middlewares.RateLimiter(limiter, limits.QueuePrefix, "issues", limits.IssuesPerDay, rateLimitWindow),
			issueController.CreateIssue,
		)
		issue.GET("/:id", middlewares.OptionalAuth(secret), issueController.GetIssue)
		issue.POST("/:id/flag",
			middlewares.AuthMiddleware(secret),
			middlewares.RateLimiter(limiter, limits.QueuePrefix, "flags", limits.FlagsPerDay, rateLimitWindow),
			issueController.FlagIssue,
		)
	}
}
