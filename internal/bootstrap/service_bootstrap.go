package bootstrap

import (
	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/service"
)

type Services struct {
	databaseService *service.DatabaseService
	cipherService   *service.CipherService
	authService     *service.AuthService
	tokenService    *service.TokenService
	identityService *service.IdentityService
	stravaService   *service.StravaService
	activityService *service.ActivityService
	coachService    *service.CoachService
}

func (app *BootstrapApp) initServices() (Services, error) {
	services := Services{}

	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: app.config.DatabasePath,
	})

	err := databaseService.Init()

	if err != nil {
		return Services{}, err
	}

	services.databaseService = databaseService

	cipherService := service.NewCipherService(service.CipherServiceConfig{
		Secret: app.config.Secret,
	})

	err = cipherService.Init()

	if err != nil {
		return Services{}, err
	}

	services.cipherService = cipherService

	authService := service.NewAuthService(service.AuthServiceConfig{
		Secret:            app.config.Secret,
		SessionExpiry:     app.config.SessionExpiry,
		SecureCookie:      app.config.SecureCookie,
		SessionCookieName: config.SessionCookieName,
		LoginTimeout:      app.config.LoginTimeout,
		LoginMaxRetries:   app.config.LoginMaxRetries,
	}, databaseService.GetDatabase())

	err = authService.Init()

	if err != nil {
		return Services{}, err
	}

	services.authService = authService

	tokenService := service.NewTokenService(service.TokenServiceConfig{
		ClientID:     app.config.StravaClientID,
		ClientSecret: app.config.StravaClientSecret,
		TokenURL:     config.StravaTokenURL,
	}, databaseService.GetDatabase(), cipherService)

	err = tokenService.Init()

	if err != nil {
		return Services{}, err
	}

	services.tokenService = tokenService

	identityService := service.NewIdentityService(databaseService.GetDatabase())

	err = identityService.Init()

	if err != nil {
		return Services{}, err
	}

	services.identityService = identityService

	stravaService := service.NewStravaService(service.StravaServiceConfig{
		ClientID:     app.config.StravaClientID,
		ClientSecret: app.config.StravaClientSecret,
		RedirectURL:  app.config.StravaRedirectURL,
		Secret:       app.config.Secret,
		AuthURL:      config.StravaAuthURL,
		TokenURL:     config.StravaTokenURL,
	})

	err = stravaService.Init()

	if err != nil {
		return Services{}, err
	}

	services.stravaService = stravaService

	activityService := service.NewActivityService(service.ActivityServiceConfig{
		APIBaseURL: config.StravaAPIBaseURL,
	}, tokenService)

	err = activityService.Init()

	if err != nil {
		return Services{}, err
	}

	services.activityService = activityService

	coachService := service.NewCoachService(service.CoachServiceConfig{
		Enabled: app.config.CoachEnabled,
		APIKey:  app.config.CoachAPIKey,
		APIURL:  app.config.CoachAPIURL,
		Model:   app.config.CoachModel,
	})

	err = coachService.Init()

	if err != nil {
		return Services{}, err
	}

	services.coachService = coachService

	return services, nil
}
