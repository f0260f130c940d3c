package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

type CipherServiceConfig struct {
	Secret string
}

// CipherService encrypts provider tokens before they hit the database.
// The key is derived deterministically from the configured secret, so the
// same secret must be supplied across restarts or every stored ciphertext
// becomes unreadable.
type CipherService struct {
	Config CipherServiceConfig
	aead   cipher.AEAD
}

func NewCipherService(config CipherServiceConfig) *CipherService {
	return &CipherService{
		Config: config,
	}
}

func (cs *CipherService) Init() error {
	if cs.Config.Secret == "" {
		return errors.New("cipher secret is required")
	}

	// Use the secret directly when it is already valid AES-256 key
	// material, otherwise hash it down to 32 bytes.
	key := []byte(cs.Config.Secret)
	if len(key) != 32 {
		sum := sha256.Sum256(key)
		key = sum[:]
	}

	block, err := aes.NewCipher(key)

	if err != nil {
		return err
	}

	aead, err := cipher.NewGCM(block)

	if err != nil {
		return err
	}

	cs.aead = aead
	return nil
}

func (cs *CipherService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, cs.aead.NonceSize())

	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := cs.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt returns the plaintext for a ciphertext produced by Encrypt. Any
// value that does not decode or authenticate is returned unchanged, so
// rows written before encryption was introduced keep working. This is a
// compatibility shim, not a security boundary: a corrupted ciphertext is
// passed through silently instead of failing the caller.
func (cs *CipherService) Decrypt(value string) string {
	if value == "" {
		return ""
	}

	raw, err := base64.RawURLEncoding.DecodeString(value)

	if err != nil || len(raw) < cs.aead.NonceSize() {
		return value
	}

	nonce, sealed := raw[:cs.aead.NonceSize()], raw[cs.aead.NonceSize():]

	plaintext, err := cs.aead.Open(nil, nonce, sealed, nil)

	if err != nil {
		log.Debug().Msg("Value did not authenticate as ciphertext, treating as legacy plaintext")
		return value
	}

	return string(plaintext)
}
