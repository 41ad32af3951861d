package storage

import (
	"context"

	"coursehub/internal/common/errors"
	"coursehub/internal/crypto"
	"coursehub/internal/models"
)

// EncryptingStorage wraps any Storage and keeps long-lived secrets encrypted
// at rest: the Google refresh token and the Canvas API key. Short-lived
// access tokens pass through unmodified.
type EncryptingStorage struct {
	Storage
	encryptor *crypto.TokenEncryptor
}

// NewEncrypting wraps the given backend with secret encryption.
func NewEncrypting(inner Storage, encryptor *crypto.TokenEncryptor) *EncryptingStorage {
	return &EncryptingStorage{Storage: inner, encryptor: encryptor}
}

func (e *EncryptingStorage) GetCredentials(ctx context.Context, userID string) (*models.Credentials, error) {
	creds, err := e.Storage.GetCredentials(ctx, userID)
	if err != nil || creds == nil {
		return creds, err
	}

	refreshToken, err := e.encryptor.Decrypt(creds.GoogleRefreshToken)
	if err != nil {
		return nil, errors.StorageError("failed to decrypt google refresh token", err)
	}
	creds.GoogleRefreshToken = refreshToken

	canvasToken, err := e.encryptor.Decrypt(creds.CanvasAccessToken)
	if err != nil {
		return nil, errors.StorageError("failed to decrypt canvas access token", err)
	}
	creds.CanvasAccessToken = canvasToken

	return creds, nil
}

func (e *EncryptingStorage) UpsertCredentialFields(ctx context.Context, userID string, fields map[string]interface{}) error {
	if err := ValidateCredentialFields(fields); err != nil {
		return errors.ValidationError(err.Error())
	}

	encrypted := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		switch key {
		case FieldGoogleRefreshToken, FieldCanvasAccessToken:
			ciphertext, err := e.encryptor.Encrypt(value.(string))
			if err != nil {
				return errors.StorageError("failed to encrypt credential field", err).WithContext("field", key)
			}
			encrypted[key] = ciphertext
		default:
			encrypted[key] = value
		}
	}

	return e.Storage.UpsertCredentialFields(ctx, userID, encrypted)
}
