package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stridecoach/stridecoach/internal/config"

	"github.com/google/uuid"
)

// StateClaims is the payload carried through the provider redirect. It is
// signed but not encrypted, nothing in it is secret.
type StateClaims struct {
	UserID   uint   `json:"user_id"`
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"iat"`
}

// SignState produces a signed, time-stamped handshake state token in
// base64url payload.signature form.
func SignState(userID uint, secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required for state generation")
	}

	claims := StateClaims{
		UserID:   userID,
		Nonce:    uuid.NewString(),
		IssuedAt: time.Now().Unix(),
	}

	payload, err := json.Marshal(claims)

	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	sig := mac.Sum(nil)

	return fmt.Sprintf("%s.%s", base64.RawURLEncoding.EncodeToString(payload), base64.RawURLEncoding.EncodeToString(sig)), nil
}

// VerifyState checks the signature and age of a state token. A bad
// signature or format yields ErrStateInvalid, a token older than maxAge
// seconds yields ErrStateExpired. The two are distinct on purpose so an
// expired-but-genuine flow is debuggable without hinting at forgeability.
func VerifyState(token string, secret string, maxAge int64) (*StateClaims, error) {
	parts := strings.SplitN(token, ".", 2)

	if len(parts) != 2 {
		return nil, config.ErrStateInvalid
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])

	if err != nil {
		return nil, config.ErrStateInvalid
	}

	sig, err := base64.RawURLEncoding.DecodeString(parts[1])

	if err != nil {
		return nil, config.ErrStateInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(sig, expected) {
		return nil, config.ErrStateInvalid
	}

	var claims StateClaims

	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, config.ErrStateInvalid
	}

	if time.Now().Unix()-claims.IssuedAt > maxAge {
		return nil, config.ErrStateExpired
	}

	return &claims, nil
}

// DeriveKey stretches the app secret into 32 bytes of purpose-scoped key
// material. Deterministic so the same secret always yields the same key.
func DeriveKey(secret string, purpose string) []byte {
	sum := sha256.Sum256([]byte(secret + ":" + purpose))
	return sum[:]
}

func GetRandomString(length int) (string, error) {
	if length < 1 {
		return "", errors.New("length must be greater than 0")
	}
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	return state[:length], nil
}
