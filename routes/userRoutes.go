package routes

import (
	"civictrack-be/controllers"
	"civictrack-be/middlewares"

	"github.com/gin-gonic/gin"
)

func UserRoutes(r *gin.Engine, userController *controllers.UserController, secret []byte) {
	user := r.Group("/api/user", middlewares.AuthMiddleware(secret))
	{
		user.GET("/issues", userController.MyIssues)
	}
}
