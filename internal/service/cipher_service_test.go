package service_test

import (
	"testing"

	"github.com/stridecoach/stridecoach/internal/service"

	"gotest.tools/v3/assert"
)

func setupCipherService(t *testing.T) *service.CipherService {
	cipherService := service.NewCipherService(service.CipherServiceConfig{
		Secret: "super-secret-api-key-for-testing",
	})

	err := cipherService.Init()
	assert.NilError(t, err)

	return cipherService
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cipherService := setupCipherService(t)

	encrypted, err := cipherService.Encrypt("access-token-abc123")
	assert.NilError(t, err)
	assert.Assert(t, encrypted != "")
	assert.Assert(t, encrypted != "access-token-abc123")

	decrypted := cipherService.Decrypt(encrypted)
	assert.Equal(t, "access-token-abc123", decrypted)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	cipherService := setupCipherService(t)

	first, err := cipherService.Encrypt("same-plaintext")
	assert.NilError(t, err)

	second, err := cipherService.Encrypt("same-plaintext")
	assert.NilError(t, err)

	assert.Assert(t, first != second)
	assert.Equal(t, "same-plaintext", cipherService.Decrypt(first))
	assert.Equal(t, "same-plaintext", cipherService.Decrypt(second))
}

func TestEncryptEmptyValue(t *testing.T) {
	cipherService := setupCipherService(t)

	encrypted, err := cipherService.Encrypt("")
	assert.NilError(t, err)
	assert.Equal(t, "", encrypted)

	assert.Equal(t, "", cipherService.Decrypt(""))
}

func TestDecryptLegacyPlaintext(t *testing.T) {
	cipherService := setupCipherService(t)

	// Rows written before encryption was introduced hold raw tokens,
	// those must pass through unchanged.
	assert.Equal(t, "legacy-plain-token", cipherService.Decrypt("legacy-plain-token"))
}

func TestDecryptWithWrongSecret(t *testing.T) {
	cipherService := setupCipherService(t)

	other := service.NewCipherService(service.CipherServiceConfig{
		Secret: "a-completely-different-secret",
	})
	assert.NilError(t, other.Init())

	encrypted, err := cipherService.Encrypt("access-token-abc123")
	assert.NilError(t, err)

	// Fails authentication under the wrong key and falls back to
	// returning the raw value.
	assert.Equal(t, encrypted, other.Decrypt(encrypted))
}

func TestInitRequiresSecret(t *testing.T) {
	cipherService := service.NewCipherService(service.CipherServiceConfig{})
	assert.Assert(t, cipherService.Init() != nil)
}
