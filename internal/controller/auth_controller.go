package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/stridecoach/stridecoach/internal/service"
	"github.com/stridecoach/stridecoach/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthController struct {
	router *gin.RouterGroup
	auth   *service.AuthService
}

func NewAuthController(router *gin.RouterGroup, auth *service.AuthService) *AuthController {
	return &AuthController{
		router: router,
		auth:   auth,
	}
}

func (controller *AuthController) SetupRoutes() {
	authGroup := controller.router.Group("/auth")
	authGroup.GET("/csrf", controller.csrfHandler)
	authGroup.POST("/register", controller.registerHandler)
	authGroup.POST("/login", controller.loginHandler)
	authGroup.POST("/logout", controller.logoutHandler)
	authGroup.GET("/me", controller.meHandler)
}

func (controller *AuthController) csrfHandler(c *gin.Context) {
	token, err := controller.auth.IssueCSRF(c)

	if err != nil {
		log.Error().Err(err).Msg("Failed to issue CSRF token")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.JSON(200, gin.H{
		"status": 200,
		"csrf":   token,
	})
}

func (controller *AuthController) registerHandler(c *gin.Context) {
	if !controller.auth.CheckCSRF(c) {
		c.JSON(403, gin.H{
			"status":  403,
			"message": "CSRF check failed",
		})
		return
	}

	var req RegisterRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to bind JSON")
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	user, err := controller.auth.Register(req.Email, req.Password, req.Name)

	if errors.Is(err, service.ErrEmailTaken) {
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Email already registered",
		})
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("Failed to register user")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if err := controller.auth.CreateUserSession(c, user.ID); err != nil {
		log.Error().Err(err).Msg("Failed to create session cookie")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	log.Info().Uint("user_id", user.ID).Msg("User registered")

	c.JSON(200, gin.H{
		"status": 200,
		"id":     user.ID,
		"email":  user.Email,
		"name":   user.Name,
	})
}

func (controller *AuthController) loginHandler(c *gin.Context) {
	if !controller.auth.CheckCSRF(c) {
		c.JSON(403, gin.H{
			"status":  403,
			"message": "CSRF check failed",
		})
		return
	}

	var req LoginRequest

	err := c.ShouldBindJSON(&req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to bind JSON")
		c.JSON(400, gin.H{
			"status":  400,
			"message": "Bad Request",
		})
		return
	}

	log.Debug().Str("email", req.Email).Msg("Login attempt")

	isLocked, remaining := controller.auth.IsAccountLocked(req.Email)

	if isLocked {
		log.Warn().Str("email", req.Email).Msg("Account is locked due to too many failed login attempts")
		c.Writer.Header().Add("x-stridecoach-lock-reset", time.Now().Add(time.Duration(remaining)*time.Second).Format(time.RFC3339))
		c.JSON(429, gin.H{
			"status":  429,
			"message": fmt.Sprintf("Too many failed login attempts. Try again in %d seconds", remaining),
		})
		return
	}

	user, ok := controller.auth.VerifyCredentials(req.Email, req.Password)

	if !ok {
		log.Warn().Str("email", req.Email).Msg("Invalid credentials")
		controller.auth.RecordLoginAttempt(req.Email, false)
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	controller.auth.RecordLoginAttempt(req.Email, true)

	if err := controller.auth.CreateUserSession(c, user.ID); err != nil {
		log.Error().Err(err).Msg("Failed to create session cookie")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	log.Info().Uint("user_id", user.ID).Msg("Login successful")

	c.JSON(200, gin.H{
		"status": 200,
		"id":     user.ID,
		"email":  user.Email,
		"name":   user.Name,
	})
}

func (controller *AuthController) logoutHandler(c *gin.Context) {
	if !controller.auth.CheckCSRF(c) {
		c.JSON(403, gin.H{
			"status":  403,
			"message": "CSRF check failed",
		})
		return
	}

	log.Debug().Msg("Logout request received")

	controller.auth.DeleteSessionCookie(c)

	c.JSON(200, gin.H{
		"status":  200,
		"message": "Logout successful",
	})
}

func (controller *AuthController) meHandler(c *gin.Context) {
	context, err := utils.GetContext(c)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get user context")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if !context.IsLoggedIn {
		c.JSON(401, gin.H{
			"status":  401,
			"message": "Unauthorized",
		})
		return
	}

	c.JSON(200, gin.H{
		"status": 200,
		"id":     context.UserID,
		"email":  context.Email,
		"name":   context.Name,
	})
}
