package routes

import (
	"net/http"
	"time"

	"civictrack-be/config"
	"civictrack-be/controllers"
	"civictrack-be/middlewares"
	"civictrack-be/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const rateLimitWindow = 24 * time.Hour

// Dependencies are the pieces the router wires into controllers and
// middlewares.
type Dependencies struct {
	Settings *config.Settings
	Users    *services.UserService
	Issues   *services.IssueService
	Flags    *services.FlagService
	Admin    *services.AdminService
	Limiter  middlewares.Counter
}

// SetupRouter builds the gin engine with every route group mounted.
func SetupRouter(deps Dependencies) (*gin.Engine, error) {
	if err := controllers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.Default()
	r.Use(middlewares.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.Settings.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	secret := []byte(deps.Settings.JWTSecret)
	defaultLimit := deps.Settings.Pagination.DefaultLimit

	userController := controllers.NewUserController(deps.Users, deps.Issues)

	AuthRoutes(r, controllers.NewAuthController(deps.Users, deps.Settings), userController, secret)
	IssueRoutes(r, controllers.NewIssueController(deps.Issues, deps.Flags, defaultLimit), secret, deps.Limiter, deps.Settings.RateLimit)
	UserRoutes(r, userController, secret)
	AdminRoutes(r, controllers.NewAdminController(deps.Admin, defaultLimit), secret)

	return r, nil
}
