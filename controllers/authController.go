package controllers

import (
	"net/http"
	"time"

	"civictrack-be/config"
	"civictrack-be/middlewares"
	"civictrack-be/models"
	"civictrack-be/services"
	authUtils "civictrack-be/utils"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	users    *services.UserService
	secret   []byte
	tokenTTL time.Duration
	domain   string
	secure   bool
}

func NewAuthController(users *services.UserService, settings *config.Settings) *AuthController {
	domain := settings.Domain
	// For production, don't set domain to allow cross-origin cookies
	if settings.IsProduction() {
		domain = ""
	}
	return &AuthController{
		users:    users,
		secret:   []byte(settings.JWTSecret),
		tokenTTL: time.Duration(settings.TokenTTLHours) * time.Hour,
		domain:   domain,
		secure:   settings.IsProduction(),
	}
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"role":      user.Role,
		"createdAt": user.CreatedAt,
	}
}

// Register handles user registration
func (ctr *AuthController) Register(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := storageContext(c)
	defer cancel()

	user, err := ctr.users.Register(ctx, input.Name, input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse(user))
}

// Login checks the credentials and sets the auth cookie. The token is also
// returned for clients that send it as a bearer header.
func (ctr *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := storageContext(c)
	defer cancel()

	user, err := ctr.users.Authenticate(ctx, input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := authUtils.GenerateAndSetToken(user.ID.Hex(), string(user.Role), ctr.secret, ctr.tokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookieName,
		Value:    token,
		MaxAge:   int(ctr.tokenTTL.Seconds()),
		Path:     "/",
		Domain:   ctr.domain,
		Secure:   ctr.secure,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})

	resp := userResponse(user)
	resp["token"] = token
	c.JSON(http.StatusOK, resp)
}

// Logout clears the auth cookie
func (ctr *AuthController) Logout(c *gin.Context) {
	c.SetCookie(middlewares.AuthCookieName, "", -1, "/", ctr.domain, ctr.secure, true)
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
