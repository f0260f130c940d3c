package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/model"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type TokenServiceConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// TokenService owns the credential records and their lifecycle. It is the
// only component that reads or writes strava_credentials.
type TokenService struct {
	Config   TokenServiceConfig
	database *gorm.DB
	cipher   *CipherService
	oauth    oauth2.Config
	context  context.Context
}

func NewTokenService(config TokenServiceConfig, database *gorm.DB, cipher *CipherService) *TokenService {
	return &TokenService{
		Config:   config,
		database: database,
		cipher:   cipher,
	}
}

func (ts *TokenService) Init() error {
	ts.oauth = oauth2.Config{
		ClientID:     ts.Config.ClientID,
		ClientSecret: ts.Config.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: ts.Config.TokenURL,
		},
	}

	httpClient := &http.Client{
		Timeout: 20 * time.Second,
	}

	ctx := context.Background()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	ts.context = ctx
	return nil
}

// SaveTokens upserts the credential record for a user. Both tokens are
// encrypted before persisting and an existing token is never overwritten
// with an empty one, since a refresh response may omit the refresh token.
func (ts *TokenService) SaveTokens(userID uint, payload *config.TokenPayload) error {
	expiresAt := payload.ExpiresAt

	if expiresAt == 0 {
		expiresAt = time.Now().Unix() + config.DefaultTokenLifetime
	}

	accessEnc, err := ts.cipher.Encrypt(payload.AccessToken)

	if err != nil {
		return err
	}

	refreshEnc, err := ts.cipher.Encrypt(payload.RefreshToken)

	if err != nil {
		return err
	}

	var credential model.StravaCredential
	res := ts.database.First(&credential, "user_id = ?", userID)

	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		credential = model.StravaCredential{
			UserID:          userID,
			AccessTokenEnc:  accessEnc,
			RefreshTokenEnc: refreshEnc,
			ExpiresAt:       expiresAt,
		}
		return ts.database.Create(&credential).Error
	}

	if res.Error != nil {
		return res.Error
	}

	if accessEnc != "" {
		credential.AccessTokenEnc = accessEnc
	}

	if refreshEnc != "" {
		credential.RefreshTokenEnc = refreshEnc
	}

	credential.ExpiresAt = expiresAt
	return ts.database.Save(&credential).Error
}

// LoadCredential returns the stored credential for a user, or nil when the
// user has never connected the provider.
func (ts *TokenService) LoadCredential(userID uint) (*model.StravaCredential, error) {
	var credential model.StravaCredential
	res := ts.database.First(&credential, "user_id = ?", userID)

	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if res.Error != nil {
		return nil, res.Error
	}

	return &credential, nil
}

// DeleteTokens removes the credential record. Deleting a record that does
// not exist is a no-op, not an error.
func (ts *TokenService) DeleteTokens(userID uint) error {
	return ts.database.Delete(&model.StravaCredential{}, "user_id = ?", userID).Error
}

// GetAccessToken returns a valid access token for the user, refreshing it
// transparently when expired. An empty string means the caller must send
// the user through the connect flow again: the user never connected, the
// provider revoked the grant or the refresh failed. Refresh failures are
// logged here and never surface as errors.
func (ts *TokenService) GetAccessToken(ctx context.Context, userID uint) string {
	credential, err := ts.LoadCredential(userID)

	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("Failed to load provider credential")
		return ""
	}

	if credential == nil {
		return ""
	}

	if time.Now().Unix() > credential.ExpiresAt {
		return ts.refreshTokens(ctx, userID, ts.cipher.Decrypt(credential.RefreshTokenEnc))
	}

	return ts.cipher.Decrypt(credential.AccessTokenEnc)
}

// refreshTokens runs the refresh-token grant against the provider token
// endpoint and persists the result. Two requests racing on the same
// expired credential may both refresh; the store is last-write-wins and
// both issued pairs are valid, so the race only costs a round trip.
func (ts *TokenService) refreshTokens(ctx context.Context, userID uint, refreshToken string) string {
	if refreshToken == "" {
		log.Warn().Uint("user_id", userID).Msg("Credential expired and no refresh token stored, reconnect required")
		return ""
	}

	source := ts.oauth.TokenSource(ts.contextFor(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()

	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Str("operation", "refresh").Msg("Provider rejected token refresh, reconnect required")
		return ""
	}

	payload := payloadFromToken(token)

	if err := ts.SaveTokens(userID, payload); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("Failed to persist refreshed tokens")
		return ""
	}

	return token.AccessToken
}

// contextFor layers the bounded-timeout HTTP client over the request
// context so a slow provider cannot stall the process.
func (ts *TokenService) contextFor(ctx context.Context) context.Context {
	if ctx == nil {
		return ts.context
	}
	return context.WithValue(ctx, oauth2.HTTPClient, ts.context.Value(oauth2.HTTPClient))
}

// payloadFromToken maps an oauth2 token onto the provider payload shape.
// Strava reports expiry as an absolute expires_at in epoch seconds next to
// the standard expires_in; the absolute value wins when present.
func payloadFromToken(token *oauth2.Token) *config.TokenPayload {
	payload := &config.TokenPayload{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}

	if raw, ok := token.Extra("expires_at").(float64); ok {
		payload.ExpiresAt = int64(raw)
	} else if !token.Expiry.IsZero() {
		payload.ExpiresAt = token.Expiry.Unix()
	}

	return payload
}
