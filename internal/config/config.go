package config

// Version information, set at build time

var Version = "development"
var CommitHash = "development"
var BuildTimestamp = "0000-00-00T00:00:00Z"

// Cookie names

var SessionCookieName = "stridecoach-session"

// Provider constants. Only Strava is modeled, there is deliberately no
// provider abstraction behind these.

const (
	ProviderName         = "strava"
	StravaAuthURL        = "https://www.strava.com/oauth/authorize"
	StravaTokenURL       = "https://www.strava.com/api/v3/oauth/token"
	StravaAPIBaseURL     = "https://www.strava.com/api/v3"
	StravaScopes         = "activity:read"
	StateMaxAge          = 600  // seconds a handshake state token stays valid
	DefaultTokenLifetime = 2100 // seconds, used when the provider omits expiry
)

// Main app config

type Config struct {
	Port               int    `mapstructure:"port" validate:"required"`
	Address            string `validate:"required,ip4_addr" mapstructure:"address"`
	AppURL             string `validate:"required,url" mapstructure:"app-url"`
	Secret             string `mapstructure:"secret" validate:"required,min=16"`
	DatabasePath       string `mapstructure:"database-path" validate:"required"`
	LogLevel           string `mapstructure:"log-level" validate:"oneof=trace debug info warn error fatal panic"`
	SecureCookie       bool   `mapstructure:"secure-cookie"`
	SessionExpiry      int    `mapstructure:"session-expiry"`
	LoginTimeout       int    `mapstructure:"login-timeout"`
	LoginMaxRetries    int    `mapstructure:"login-max-retries"`
	TrustedProxies     string `mapstructure:"trusted-proxies"`
	StravaClientID     string `mapstructure:"strava-client-id" validate:"required"`
	StravaClientSecret string `mapstructure:"strava-client-secret" validate:"required"`
	StravaRedirectURL  string `mapstructure:"strava-redirect-url"`
	CoachEnabled       bool   `mapstructure:"coach-enabled"`
	CoachAPIKey        string `mapstructure:"coach-api-key"`
	CoachAPIURL        string `mapstructure:"coach-api-url"`
	CoachModel         string `mapstructure:"coach-model"`
}

// Token payload as returned by the provider token endpoint. The athlete
// object is only present on the initial code exchange, never on refresh.

type TokenPayload struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // epoch seconds, 0 when the provider omitted it
	Athlete      *Athlete
}

type Athlete struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// User/session related stuff

type UserContext struct {
	UserID     uint
	Email      string
	Name       string
	IsLoggedIn bool
}

// API queries

type ConnectedQuery struct {
	Connected bool   `url:"connected"`
	Warning   string `url:"warning,omitempty"`
}

type ErrorQuery struct {
	Error string `url:"error"`
}
