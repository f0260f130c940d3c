package controller

import (
	"errors"
	"fmt"

	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/service"
	"github.com/stridecoach/stridecoach/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog/log"
)

type OAuthControllerConfig struct {
	AppURL string
}

type OAuthController struct {
	config   OAuthControllerConfig
	router   *gin.RouterGroup
	auth     *service.AuthService
	strava   *service.StravaService
	tokens   *service.TokenService
	identity *service.IdentityService
}

func NewOAuthController(config OAuthControllerConfig, router *gin.RouterGroup, auth *service.AuthService, strava *service.StravaService, tokens *service.TokenService, identity *service.IdentityService) *OAuthController {
	return &OAuthController{
		config:   config,
		router:   router,
		auth:     auth,
		strava:   strava,
		tokens:   tokens,
		identity: identity,
	}
}

func (controller *OAuthController) SetupRoutes() {
	oauthGroup := controller.router.Group("/oauth")
	oauthGroup.GET("/connect", controller.connectHandler)
	oauthGroup.GET("/callback", controller.callbackHandler)
	oauthGroup.POST("/disconnect", controller.disconnectHandler)
	oauthGroup.GET("/status", controller.statusHandler)
}

func (controller *OAuthController) connectHandler(c *gin.Context) {
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

	authURL, err := controller.strava.BuildAuthURL(context.UserID)

	if err != nil {
		log.Error().Err(err).Msg("Failed to build authorization URL")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	log.Debug().Uint("user_id", context.UserID).Msg("Redirecting to authorization endpoint")

	c.Redirect(302, authURL)
}

func (controller *OAuthController) callbackHandler(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")

	if providerError := c.Query("error"); providerError != "" {
		log.Warn().Str("error", providerError).Msg("Authorization denied by provider")
		controller.redirectWithError(c, "access_denied")
		return
	}

	userID, err := controller.strava.VerifyState(state)

	if errors.Is(err, config.ErrStateExpired) {
		log.Warn().Msg("State token expired")
		controller.redirectWithError(c, "state_expired")
		return
	}

	if err != nil {
		log.Warn().Err(err).Msg("State token invalid")
		controller.redirectWithError(c, "state_invalid")
		return
	}

	if code == "" {
		controller.redirectWithError(c, "missing_code")
		return
	}

	payload, err := controller.strava.Exchange(c.Request.Context(), code)

	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("Code exchange failed")
		controller.redirectWithError(c, "exchange_failed")
		return
	}

	if err := controller.tokens.SaveTokens(userID, payload); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("Failed to store tokens")
		controller.redirectWithError(c, "storage_failed")
		return
	}

	// Link failures do not undo the stored tokens, the athlete is
	// connected either way.
	warning := ""

	if err := controller.identity.LinkIdentity(userID, payload); err != nil {
		if errors.Is(err, config.ErrIdentityConflict) {
			log.Warn().Err(err).Uint("user_id", userID).Msg("Athlete already linked to another account")
			warning = "identity_conflict"
		} else {
			log.Error().Err(err).Uint("user_id", userID).Msg("Failed to link identity")
			warning = "link_failed"
		}
	}

	log.Info().Uint("user_id", userID).Msg("Strava account connected")

	queries, err := query.Values(config.ConnectedQuery{
		Connected: true,
		Warning:   warning,
	})

	if err != nil {
		log.Error().Err(err).Msg("Failed to build query")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.Redirect(302, fmt.Sprintf("%s?%s", controller.config.AppURL, queries.Encode()))
}

func (controller *OAuthController) disconnectHandler(c *gin.Context) {
	if !controller.auth.CheckCSRF(c) {
		c.JSON(403, gin.H{
			"status":  403,
			"message": "CSRF check failed",
		})
		return
	}

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

	if err := controller.tokens.DeleteTokens(context.UserID); err != nil {
		log.Error().Err(err).Uint("user_id", context.UserID).Msg("Failed to delete tokens")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if err := controller.identity.UnlinkIdentity(context.UserID); err != nil {
		log.Error().Err(err).Uint("user_id", context.UserID).Msg("Failed to unlink identity")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	log.Info().Uint("user_id", context.UserID).Msg("Strava account disconnected")

	c.JSON(200, gin.H{
		"status":  200,
		"message": "Disconnected",
	})
}

func (controller *OAuthController) statusHandler(c *gin.Context) {
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

	credential, err := controller.tokens.LoadCredential(context.UserID)

	if err != nil {
		log.Error().Err(err).Uint("user_id", context.UserID).Msg("Failed to load credential")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	if credential == nil {
		c.JSON(200, gin.H{
			"status":    200,
			"connected": false,
		})
		return
	}

	res := gin.H{
		"status":     200,
		"connected":  true,
		"expires_at": credential.ExpiresAt,
	}

	identity, err := controller.identity.GetIdentity(context.UserID)

	if err == nil && identity != nil {
		res["athlete_id"] = identity.ProviderUserID
	}

	c.JSON(200, res)
}

func (controller *OAuthController) redirectWithError(c *gin.Context, reason string) {
	queries, err := query.Values(config.ErrorQuery{
		Error: reason,
	})

	if err != nil {
		log.Error().Err(err).Msg("Failed to build query")
		c.JSON(500, gin.H{
			"status":  500,
			"message": "Internal Server Error",
		})
		return
	}

	c.Redirect(302, fmt.Sprintf("%s?%s", controller.config.AppURL, queries.Encode()))
}
