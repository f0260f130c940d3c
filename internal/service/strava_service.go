package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/utils"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type StravaServiceConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Secret       string
	AuthURL      string
	TokenURL     string
}

// StravaService drives the OAuth handshake with the provider: it issues
// signed state tokens, verifies them on callback and exchanges the
// authorization code for tokens.
type StravaService struct {
	Config  StravaServiceConfig
	oauth   oauth2.Config
	context context.Context
}

func NewStravaService(config StravaServiceConfig) *StravaService {
	return &StravaService{
		Config: config,
	}
}

func (ss *StravaService) Init() error {
	ss.oauth = oauth2.Config{
		ClientID:     ss.Config.ClientID,
		ClientSecret: ss.Config.ClientSecret,
		RedirectURL:  ss.Config.RedirectURL,
		Scopes:       []string{config.StravaScopes},
		Endpoint: oauth2.Endpoint{
			AuthURL:  ss.Config.AuthURL,
			TokenURL: ss.Config.TokenURL,
		},
	}

	httpClient := &http.Client{
		Timeout: 20 * time.Second,
	}

	ctx := context.Background()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	ss.context = ctx
	return nil
}

// BuildAuthURL returns the provider authorization URL for a user, with a
// signed handshake state embedded in the redirect.
func (ss *StravaService) BuildAuthURL(userID uint) (string, error) {
	state, err := utils.SignState(userID, ss.Config.Secret)

	if err != nil {
		return "", err
	}

	return ss.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto")), nil
}

// VerifyState validates the state returned by the provider and extracts
// the user that started the handshake.
func (ss *StravaService) VerifyState(state string) (uint, error) {
	claims, err := utils.VerifyState(state, ss.Config.Secret, config.StateMaxAge)

	if err != nil {
		return 0, err
	}

	return claims.UserID, nil
}

// Exchange trades the authorization code for a token payload. Any non-2xx
// response or a response without an access token is a hard failure, the
// caller gets ErrExchangeFailed with the provider status attached when
// available.
func (ss *StravaService) Exchange(ctx context.Context, code string) (*config.TokenPayload, error) {
	token, err := ss.oauth.Exchange(ss.contextFor(ctx), code)

	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, fmt.Errorf("%w: provider returned %s", config.ErrExchangeFailed, retrieveErr.Response.Status)
		}
		return nil, fmt.Errorf("%w: %v", config.ErrExchangeFailed, err)
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: response has no access token", config.ErrExchangeFailed)
	}

	payload := payloadFromToken(token)
	payload.Athlete = athleteFromToken(token)
	return payload, nil
}

func (ss *StravaService) contextFor(ctx context.Context) context.Context {
	if ctx == nil {
		return ss.context
	}
	return context.WithValue(ctx, oauth2.HTTPClient, ss.context.Value(oauth2.HTTPClient))
}

// athleteFromToken pulls the embedded athlete object out of the initial
// exchange response. Refresh responses do not carry one.
func athleteFromToken(token *oauth2.Token) *config.Athlete {
	raw := token.Extra("athlete")

	if raw == nil {
		return nil
	}

	data, err := json.Marshal(raw)

	if err != nil {
		log.Warn().Err(err).Msg("Failed to re-encode athlete object from token response")
		return nil
	}

	var athlete config.Athlete

	if err := json.Unmarshal(data, &athlete); err != nil {
		log.Warn().Err(err).Msg("Failed to decode athlete object from token response")
		return nil
	}

	return &athlete
}
