package bootstrap

import (
	"fmt"
	"strings"

	"github.com/stridecoach/stridecoach/internal/controller"
	"github.com/stridecoach/stridecoach/internal/middleware"

	"github.com/gin-gonic/gin"
)

func (app *BootstrapApp) setupRouter() (*gin.Engine, error) {
	engine := gin.New()
	engine.Use(gin.Recovery())

	if len(app.config.TrustedProxies) > 0 {
		err := engine.SetTrustedProxies(strings.Split(app.config.TrustedProxies, ","))

		if err != nil {
			return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
		}
	}

	contextMiddleware := middleware.NewContextMiddleware(app.services.authService)

	err := contextMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize context middleware: %w", err)
	}

	engine.Use(contextMiddleware.Middleware())

	zerologMiddleware := middleware.NewZerologMiddleware()

	err = zerologMiddleware.Init()

	if err != nil {
		return nil, fmt.Errorf("failed to initialize zerolog middleware: %w", err)
	}

	engine.Use(zerologMiddleware.Middleware())

	apiRouter := engine.Group("/api")

	authController := controller.NewAuthController(apiRouter, app.services.authService)

	authController.SetupRoutes()

	oauthController := controller.NewOAuthController(controller.OAuthControllerConfig{
		AppURL: app.config.AppURL,
	}, apiRouter, app.services.authService, app.services.stravaService, app.services.tokenService, app.services.identityService)

	oauthController.SetupRoutes()

	activityController := controller.NewActivityController(apiRouter, app.services.activityService, app.services.coachService)

	activityController.SetupRoutes()

	statsController := controller.NewStatsController(apiRouter, app.services.coachService)

	statsController.SetupRoutes()

	healthController := controller.NewHealthController(apiRouter)

	healthController.SetupRoutes()

	return engine, nil
}
