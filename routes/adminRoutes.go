package routes

import (
	"civictrack-be/controllers"
	"civictrack-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AdminRoutes mounts the moderation and analytics routes behind the admin gate.
func AdminRoutes(r *gin.Engine, adminController *controllers.AdminController, secret []byte) {
	admin := r.Group("/api/admin", middlewares.AuthMiddleware(secret), middlewares.AdminMiddleware())
	{
		admin.GET("/analytics", adminController.Analytics)
		admin.GET("/flagged", adminController.FlaggedIssues)
		admin.GET("/issue/:id/flags", adminController.IssueFlags)
		admin.PATCH("/issue/:id/status", adminController.UpdateStatus)
		admin.POST("/issue/:id/unhide", adminController.Unhide)
	}
}
