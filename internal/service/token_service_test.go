package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stridecoach/stridecoach/internal/config"
	"github.com/stridecoach/stridecoach/internal/service"

	"gotest.tools/v3/assert"
)

func setupDatabase(t *testing.T) *service.DatabaseService {
	databaseService := service.NewDatabaseService(service.DatabaseServiceConfig{
		DatabasePath: ":memory:",
	})

	err := databaseService.Init()
	assert.NilError(t, err)

	return databaseService
}

func setupTokenService(t *testing.T, tokenURL string) *service.TokenService {
	databaseService := setupDatabase(t)
	cipherService := setupCipherService(t)

	tokenService := service.NewTokenService(service.TokenServiceConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     tokenURL,
	}, databaseService.GetDatabase(), cipherService)

	err := tokenService.Init()
	assert.NilError(t, err)

	return tokenService
}

func TestSaveTokensEncryptsAtRest(t *testing.T) {
	tokenService := setupTokenService(t, "http://localhost/token")

	err := tokenService.SaveTokens(1, &config.TokenPayload{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Unix() + 3600,
	})
	assert.NilError(t, err)

	credential, err := tokenService.LoadCredential(1)
	assert.NilError(t, err)
	assert.Assert(t, credential != nil)

	// Stored columns never hold the raw token
	assert.Assert(t, credential.AccessTokenEnc != "A1")
	assert.Assert(t, credential.RefreshTokenEnc != "R1")
}

func TestSaveTokensDefaultExpiry(t *testing.T) {
	tokenService := setupTokenService(t, "http://localhost/token")

	before := time.Now().Unix()

	err := tokenService.SaveTokens(1, &config.TokenPayload{
		AccessToken:  "A1",
		RefreshToken: "R1",
	})
	assert.NilError(t, err)

	credential, err := tokenService.LoadCredential(1)
	assert.NilError(t, err)
	assert.Assert(t, credential != nil)

	assert.Assert(t, credential.ExpiresAt >= before+config.DefaultTokenLifetime)
	assert.Assert(t, credential.ExpiresAt <= time.Now().Unix()+config.DefaultTokenLifetime)
}

func TestSaveTokensKeepsRefreshTokenWhenOmitted(t *testing.T) {
	tokenService := setupTokenService(t, "http://localhost/token")

	err := tokenService.SaveTokens(1, &config.TokenPayload{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Unix() + 3600,
	})
	assert.NilError(t, err)

	first, err := tokenService.LoadCredential(1)
	assert.NilError(t, err)

	// A refresh response may omit the refresh token, the stored one
	// must survive the update.
	err = tokenService.SaveTokens(1, &config.TokenPayload{
		AccessToken: "A2",
		ExpiresAt:   time.Now().Unix() + 7200,
	})
	assert.NilError(t, err)

	second, err := tokenService.LoadCredential(1)
	assert.NilError(t, err)

	assert.Equal(t, first.RefreshTokenEnc, second.RefreshTokenEnc)
	assert.Assert(t, first.AccessTokenEnc != second.AccessTokenEnc)
}

func TestLoadCredentialMissing(t *testing.T) {
	tokenService := setupTokenService(t, "http://localhost/token")

	credential, err := tokenService.LoadCredential(999)
	assert.NilError(t, err)
	assert.Assert(t, credential == nil)
}

func TestDeleteTokensIsIdempotent(t *testing.T) {
	tokenService := setupTokenService(t, "http://localhost/token")

	err := tokenService.SaveTokens(1, &config.TokenPayload{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Unix() + 3600,
	})
	assert.NilError(t, err)

	assert.NilError(t, tokenService.DeleteTokens(1))

	credential, err := tokenService.LoadCredential(1)
	assert.NilError(t, err)
	assert.Assert(t, credential == nil)

	// Deleting again is a no-op
	assert.NilError(t, tokenService.DeleteTokens(1))
}

func TestGetAccessTokenWithoutCredential(t *testing.T) {
	tokenService := setupTokenService(t, "http://localhost/token")

	token := tokenService.GetAccessToken(context.Background(), 1)
	assert.Equal(t, "", token)
}

func TestGetAccessTokenValidCredential(t *testing.T) {
	refreshCalls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tokenService := setupTokenService(t, server.URL)

	err := tokenService.SaveTokens(1, &config.TokenPayload{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Unix() + 3600,
	})
	assert.NilError(t, err)

	token := tokenService.GetAccessToken(context.Background(), 1)
	assert.Equal(t, "A1", token)

	// A valid credential never hits the token endpoint
	assert.Equal(t, 0, refreshCalls)
}

func TestGetAccessTokenRefreshesExpired(t *testing.T) {
	refreshCalls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NilError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "R1", r.Form.Get("refresh_token"))

		refreshCalls++

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"A2","refresh_token":"R2","token_type":"Bearer","expires_at":%d,"expires_in":21600}`, time.Now().Unix()+21600)
	}))
	defer server.Close()

	tokenService := setupTokenService(t, server.URL)

	err := tokenService.SaveTokens(1, &config.TokenPayload{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Unix() - 10,
	})
	assert.NilError(t, err)

	token := tokenService.GetAccessToken(context.Background(), 1)
	assert.Equal(t, "A2", token)
	assert.Equal(t, 1, refreshCalls)

	// The rotated pair is persisted, the next call does not refresh
	token = tokenService.GetAccessToken(context.Background(), 1)
	assert.Equal(t, "A2", token)
	assert.Equal(t, 1, refreshCalls)
}

func TestGetAccessTokenRefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer server.Close()

	tokenService := setupTokenService(t, server.URL)

	err := tokenService.SaveTokens(1, &config.TokenPayload{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Unix() - 10,
	})
	assert.NilError(t, err)

	// A rejected refresh means reconnect, never an error
	token := tokenService.GetAccessToken(context.Background(), 1)
	assert.Equal(t, "", token)
}
