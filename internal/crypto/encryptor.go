// Package crypto provides AES-256-GCM encryption for credential secrets
// (refresh tokens and LMS API keys) before they are written to storage.
//
// Each encryption uses a unique random nonce, so encrypting the same secret
// twice produces different ciphertexts. The key is derived from a passphrase
// with PBKDF2.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"coursehub/internal/common/errors"
)

// TokenEncryptor handles encryption and decryption of stored credential
// secrets using AES-256-GCM. It is safe for concurrent use.
type TokenEncryptor struct {
	key []byte // 32-byte AES-256 key derived via PBKDF2
}

// NewTokenEncryptor creates a TokenEncryptor from a passphrase. The
// passphrase is run through PBKDF2 so any non-empty input yields a proper
// 32-byte AES-256 key.
func NewTokenEncryptor(key string) (*TokenEncryptor, error) {
	if key == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	// Static salt keeps derivation deterministic across restarts
	salt := []byte("coursehub-credential-salt")
	derivedKey := pbkdf2.Key([]byte(key), salt, 10000, 32, sha256.New)

	return &TokenEncryptor{key: derivedKey}, nil
}

// Encrypt encrypts a plaintext string and returns it base64-encoded with the
// nonce prepended. Empty strings pass through unencrypted so absent
// credentials stay absent.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. GCM authenticates the ciphertext, so a wrong key
// or tampered value fails rather than returning garbage.
func (e *TokenEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.InternalError("failed to decode ciphertext", err)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}

	return string(plaintext), nil
}
