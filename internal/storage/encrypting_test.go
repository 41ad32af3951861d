package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/crypto"
)

func TestEncryptingStorage_SecretsEncryptedAtRest(t *testing.T) {
	inner := NewMemoryStorage()
	encryptor, err := crypto.NewTokenEncryptor("test-encryption-key-32-characters")
	require.NoError(t, err)

	store := NewEncrypting(inner, encryptor)
	ctx := context.Background()

	err = store.UpsertCredentialFields(ctx, "user-1", map[string]interface{}{
		FieldGoogleRefreshToken: "rt-secret",
		FieldGoogleAccessToken:  "at-plain",
		FieldCanvasDomain:       "school.instructure.com",
		FieldCanvasAccessToken:  "canvas-secret",
	})
	require.NoError(t, err)

	// The backend must never see the plaintext secrets.
	raw, err := inner.GetCredentials(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEqual(t, "rt-secret", raw.GoogleRefreshToken)
	assert.NotEqual(t, "canvas-secret", raw.CanvasAccessToken)
	assert.Equal(t, "at-plain", raw.GoogleAccessToken)
	assert.Equal(t, "school.instructure.com", raw.CanvasDomain)

	// Reads through the decorator round-trip to plaintext.
	creds, err := store.GetCredentials(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "rt-secret", creds.GoogleRefreshToken)
	assert.Equal(t, "canvas-secret", creds.CanvasAccessToken)
}

func TestEncryptingStorage_AbsentUserPassesThrough(t *testing.T) {
	encryptor, err := crypto.NewTokenEncryptor("test-encryption-key-32-characters")
	require.NoError(t, err)
	store := NewEncrypting(NewMemoryStorage(), encryptor)

	creds, err := store.GetCredentials(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, creds)
}
