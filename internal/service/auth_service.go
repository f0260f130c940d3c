package service

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/stridecoach/stridecoach/internal/model"
	"github.com/stridecoach/stridecoach/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrEmailTaken = errors.New("email already registered")

type LoginAttempt struct {
	FailedAttempts int
	LastAttempt    time.Time
	LockedUntil    time.Time
}

type AuthServiceConfig struct {
	Secret            string
	SessionExpiry     int
	SecureCookie      bool
	SessionCookieName string
	LoginTimeout      int
	LoginMaxRetries   int
}

// AuthService owns local accounts and their cookie sessions. Provider
// credentials are deliberately not its concern.
type AuthService struct {
	Config        AuthServiceConfig
	database      *gorm.DB
	LoginAttempts map[string]*LoginAttempt
	LoginMutex    sync.RWMutex
	Store         *sessions.CookieStore
}

func NewAuthService(config AuthServiceConfig, database *gorm.DB) *AuthService {
	return &AuthService{
		Config:        config,
		database:      database,
		LoginAttempts: make(map[string]*LoginAttempt),
	}
}

func (auth *AuthService) Init() error {
	store := sessions.NewCookieStore(utils.DeriveKey(auth.Config.Secret, "session-hmac"), utils.DeriveKey(auth.Config.Secret, "session-encryption"))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   auth.Config.SessionExpiry,
		Secure:   auth.Config.SecureCookie,
		HttpOnly: true,
	}
	auth.Store = store
	return nil
}

func (auth *AuthService) GetSession(c *gin.Context) (*sessions.Session, error) {
	session, err := auth.Store.Get(c.Request, auth.Config.SessionCookieName)

	// If there was an error getting the session, it might be invalid so let's clear it and retry
	if err != nil {
		log.Error().Err(err).Msg("Invalid session, clearing cookie and retrying")
		c.SetCookie(auth.Config.SessionCookieName, "", -1, "/", "", auth.Config.SecureCookie, true)
		session, err = auth.Store.Get(c.Request, auth.Config.SessionCookieName)
		if err != nil {
			log.Error().Err(err).Msg("Failed to get session")
			return nil, err
		}
	}

	return session, nil
}

// Register creates a local account. The password is hashed with bcrypt
// before it is stored.
func (auth *AuthService) Register(email string, password string, name string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing model.User
	res := auth.database.First(&existing, "email = ?", email)

	if res.Error == nil {
		return nil, ErrEmailTaken
	}

	if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, res.Error
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	if err != nil {
		return nil, err
	}

	user := model.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
	}

	if err := auth.database.Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// VerifyCredentials checks an email/password pair against the users
// table. The bool is false both for unknown users and wrong passwords so
// the two are indistinguishable to the caller.
func (auth *AuthService) VerifyCredentials(email string, password string) (*model.User, bool) {
	var user model.User
	res := auth.database.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email)))

	if res.Error != nil {
		// Burn a comparison anyway so the timing does not leak whether
		// the account exists.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return nil, false
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, false
	}

	return &user, true
}

func (auth *AuthService) GetUser(userID uint) (*model.User, error) {
	var user model.User
	res := auth.database.First(&user, userID)

	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if res.Error != nil {
		return nil, res.Error
	}

	return &user, nil
}

func (auth *AuthService) CreateUserSession(c *gin.Context, userID uint) error {
	log.Debug().Uint("user_id", userID).Msg("Creating session cookie")

	session, err := auth.GetSession(c)
	if err != nil {
		return err
	}

	session.Values["user_id"] = userID
	session.Values["expiry"] = time.Now().Add(time.Duration(auth.Config.SessionExpiry) * time.Second).Unix()

	return session.Save(c.Request, c.Writer)
}

func (auth *AuthService) DeleteSessionCookie(c *gin.Context) error {
	log.Debug().Msg("Deleting session cookie")

	session, err := auth.GetSession(c)
	if err != nil {
		return err
	}

	for key := range session.Values {
		delete(session.Values, key)
	}

	return session.Save(c.Request, c.Writer)
}

// GetSessionUserID resolves the logged-in user from the session cookie.
// Zero means no valid session.
func (auth *AuthService) GetSessionUserID(c *gin.Context) uint {
	session, err := auth.GetSession(c)
	if err != nil {
		return 0
	}

	userID, userOk := session.Values["user_id"].(uint)
	expiry, expiryOk := session.Values["expiry"].(int64)

	if !userOk || !expiryOk {
		return 0
	}

	if time.Now().Unix() > expiry {
		log.Debug().Uint("user_id", userID).Msg("Session cookie expired")
		auth.DeleteSessionCookie(c)
		return 0
	}

	return userID
}

// IssueCSRF stores a fresh CSRF token in the session and returns it. The
// client echoes it back in the X-CSRF-Token header on state-changing
// requests.
func (auth *AuthService) IssueCSRF(c *gin.Context) (string, error) {
	session, err := auth.GetSession(c)
	if err != nil {
		return "", err
	}

	token, err := utils.GetRandomString(32)
	if err != nil {
		return "", err
	}

	session.Values["csrf"] = token

	if err := session.Save(c.Request, c.Writer); err != nil {
		return "", err
	}

	return token, nil
}

func (auth *AuthService) CheckCSRF(c *gin.Context) bool {
	session, err := auth.GetSession(c)
	if err != nil {
		return false
	}

	stored, ok := session.Values["csrf"].(string)
	header := c.GetHeader("X-CSRF-Token")

	return ok && stored != "" && header == stored
}

func (auth *AuthService) IsAccountLocked(identifier string) (bool, int) {
	auth.LoginMutex.RLock()
	defer auth.LoginMutex.RUnlock()

	// Return false if rate limiting is not configured
	if auth.Config.LoginMaxRetries <= 0 || auth.Config.LoginTimeout <= 0 {
		return false, 0
	}

	attempt, exists := auth.LoginAttempts[identifier]
	if !exists {
		return false, 0
	}

	// If account is locked, check if lock time has expired
	if attempt.LockedUntil.After(time.Now()) {
		remaining := int(time.Until(attempt.LockedUntil).Seconds())
		return true, remaining
	}

	return false, 0
}

func (auth *AuthService) RecordLoginAttempt(identifier string, success bool) {
	// Skip if rate limiting is not configured
	if auth.Config.LoginMaxRetries <= 0 || auth.Config.LoginTimeout <= 0 {
		return
	}

	auth.LoginMutex.Lock()
	defer auth.LoginMutex.Unlock()

	attempt, exists := auth.LoginAttempts[identifier]
	if !exists {
		attempt = &LoginAttempt{}
		auth.LoginAttempts[identifier] = attempt
	}

	attempt.LastAttempt = time.Now()

	// If successful login, reset failed attempts
	if success {
		attempt.FailedAttempts = 0
		attempt.LockedUntil = time.Time{}
		return
	}

	attempt.FailedAttempts++

	if attempt.FailedAttempts >= auth.Config.LoginMaxRetries {
		attempt.LockedUntil = time.Now().Add(time.Duration(auth.Config.LoginTimeout) * time.Second)
		log.Warn().Str("identifier", identifier).Int("timeout", auth.Config.LoginTimeout).Msg("Account locked due to too many failed login attempts")
	}
}
