package cmd

import (
	"strings"

	"github.com/stridecoach/stridecoach/internal/bootstrap"
	"github.com/stridecoach/stridecoach/internal/config"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "stridecoach",
	Short: "A personal marathon coaching backend.",
	Long:  `Stridecoach connects your Strava account and turns your workouts into marathon coaching feedback.`,
	Run: func(cmd *cobra.Command, args []string) {
		var conf config.Config

		err := viper.Unmarshal(&conf)
		HandleError(err, "Failed to parse config")

		validate := validator.New()
		err = validate.Struct(conf)
		HandleError(err, "Invalid config")

		logLevel, err := zerolog.ParseLevel(strings.ToLower(conf.LogLevel))
		HandleError(err, "Invalid log level")
		zerolog.SetGlobalLevel(logLevel)

		log.Info().Str("version", config.Version).Msg("Starting stridecoach")

		app := bootstrap.NewBootstrapApp(conf)

		err = app.Setup()
		HandleError(err, "Failed to start app")
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to execute command")
	}
}

func HandleError(err error, msg string) {
	if err != nil {
		log.Fatal().Err(err).Msg(msg)
	}
}

func init() {
	rootCmd.AddCommand(versionCmd())
	viper.AutomaticEnv()
	rootCmd.Flags().Int("port", 3000, "Port to run the server on.")
	rootCmd.Flags().String("address", "0.0.0.0", "Address to bind the server to.")
	rootCmd.Flags().String("app-url", "", "The stridecoach URL.")
	rootCmd.Flags().String("secret", "", "Secret used for sessions, state tokens and token encryption.")
	rootCmd.Flags().String("database-path", "stridecoach.db", "Path to the sqlite database.")
	rootCmd.Flags().String("log-level", "info", "Log level.")
	rootCmd.Flags().Bool("secure-cookie", false, "Send cookie over secure connection only.")
	rootCmd.Flags().Int("session-expiry", 86400, "Session expiration time in seconds.")
	rootCmd.Flags().Int("login-timeout", 300, "Duration of login lockout after max retries in seconds.")
	rootCmd.Flags().Int("login-max-retries", 5, "Failed login attempts before lockout (0 to disable).")
	rootCmd.Flags().String("trusted-proxies", "", "Comma separated list of trusted proxies.")
	rootCmd.Flags().String("strava-client-id", "", "Strava OAuth client ID.")
	rootCmd.Flags().String("strava-client-secret", "", "Strava OAuth client secret.")
	rootCmd.Flags().String("strava-redirect-url", "", "Strava OAuth redirect URL, defaults to app-url/api/oauth/callback.")
	rootCmd.Flags().Bool("coach-enabled", false, "Enable AI coach feedback.")
	rootCmd.Flags().String("coach-api-key", "", "Coach API key.")
	rootCmd.Flags().String("coach-api-url", "https://api.openai.com/v1/chat/completions", "Coach chat completions URL.")
	rootCmd.Flags().String("coach-model", "gpt-4o-mini", "Coach model name.")
	viper.BindEnv("port", "PORT")
	viper.BindEnv("address", "ADDRESS")
	viper.BindEnv("app-url", "APP_URL")
	viper.BindEnv("secret", "SECRET")
	viper.BindEnv("database-path", "DATABASE_PATH")
	viper.BindEnv("log-level", "LOG_LEVEL")
	viper.BindEnv("secure-cookie", "SECURE_COOKIE")
	viper.BindEnv("session-expiry", "SESSION_EXPIRY")
	viper.BindEnv("login-timeout", "LOGIN_TIMEOUT")
	viper.BindEnv("login-max-retries", "LOGIN_MAX_RETRIES")
	viper.BindEnv("trusted-proxies", "TRUSTED_PROXIES")
	viper.BindEnv("strava-client-id", "STRAVA_CLIENT_ID")
	viper.BindEnv("strava-client-secret", "STRAVA_CLIENT_SECRET")
	viper.BindEnv("strava-redirect-url", "STRAVA_REDIRECT_URL")
	viper.BindEnv("coach-enabled", "COACH_ENABLED")
	viper.BindEnv("coach-api-key", "COACH_API_KEY")
	viper.BindEnv("coach-api-url", "COACH_API_URL")
	viper.BindEnv("coach-model", "COACH_MODEL")
	viper.BindPFlags(rootCmd.Flags())
}
