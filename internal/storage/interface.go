// Package storage defines the persistence boundary of the integration layer
// and the partial-update contract that keeps concurrent credential writes
// from clobbering each other.
package storage

import (
	"context"
	"fmt"
	"time"

	"coursehub/internal/models"
)

// Credential field keys accepted by UpsertCredentialFields. Updates touch
// only the keys present in the map, never the whole row, so a refresh
// racing a disconnect can at worst write a stale access token.
const (
	FieldGoogleAccessToken  = "google_access_token"
	FieldGoogleRefreshToken = "google_refresh_token"
	FieldGoogleTokenExpiry  = "google_token_expiry"
	FieldGoogleReauthNeeded = "google_reauth_required"
	FieldCanvasDomain       = "canvas_domain"
	FieldCanvasAccessToken  = "canvas_access_token"
)

// CredentialStore is the persistence boundary for per-user provider credentials.
type CredentialStore interface {
	// GetCredentials returns the credential record for a user, or (nil, nil)
	// when no record exists.
	GetCredentials(ctx context.Context, userID string) (*models.Credentials, error)

	// UpsertCredentialFields applies a partial update to the user's
	// credential record, creating it if absent. Only allowlisted keys are
	// accepted; unknown keys are rejected.
	UpsertCredentialFields(ctx context.Context, userID string, fields map[string]interface{}) error

	// ListExpiringGoogleCredentials returns user IDs holding a refresh token
	// whose access token expiry is absent or earlier than the given time.
	ListExpiringGoogleCredentials(ctx context.Context, before time.Time) ([]string, error)
}

// ClassStore persists the user-owned containers imported assignments land in.
type ClassStore interface {
	CreateClass(ctx context.Context, class *models.Class) (*models.Class, error)
	GetClass(ctx context.Context, classID string) (*models.Class, error)
	ListClasses(ctx context.Context, userID string) ([]*models.Class, error)
	UserOwnsClass(ctx context.Context, classID, userID string) (bool, error)
}

// TaskStore persists locally imported assignment records.
type TaskStore interface {
	// TaskExistsByRemoteID reports whether a task already exists for the
	// (classID, userID, remoteID) key.
	TaskExistsByRemoteID(ctx context.Context, classID, userID, remoteID string) (bool, error)

	InsertTask(ctx context.Context, task *models.Task) (*models.Task, error)
	ListTasks(ctx context.Context, classID, userID string) ([]*models.Task, error)
}

// SettingsStore is a small key-value store for operational state.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Storage combines all persistence concerns behind one boundary.
type Storage interface {
	CredentialStore
	ClassStore
	TaskStore
	SettingsStore

	Health() error
	Close() error
}

// StorageConfig is implemented by backend-specific configurations.
type StorageConfig interface {
	Validate() error
	Type() string
}

// ValidateCredentialFields rejects updates containing unknown keys or empty
// updates. Value types are checked where it is cheap to do so.
func ValidateCredentialFields(fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("credential update must contain at least one field")
	}

	for key, value := range fields {
		switch key {
		case FieldGoogleAccessToken, FieldGoogleRefreshToken, FieldCanvasDomain, FieldCanvasAccessToken:
			if _, ok := value.(string); !ok {
				return fmt.Errorf("field %s must be a string", key)
			}
		case FieldGoogleTokenExpiry:
			switch value.(type) {
			case nil, *time.Time, time.Time:
			default:
				return fmt.Errorf("field %s must be a time or nil", key)
			}
		case FieldGoogleReauthNeeded:
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("field %s must be a bool", key)
			}
		default:
			return fmt.Errorf("unknown credential field %s", key)
		}
	}

	return nil
}

// ExpiryFromField normalizes the accepted expiry value shapes to *time.Time.
func ExpiryFromField(value interface{}) *time.Time {
	switch v := value.(type) {
	case *time.Time:
		return v
	case time.Time:
		return &v
	default:
		return nil
	}
}

// ApplyCredentialFields applies a validated partial update to an in-memory
// credential record.
func ApplyCredentialFields(creds *models.Credentials, fields map[string]interface{}) {
	for key, value := range fields {
		switch key {
		case FieldGoogleAccessToken:
			creds.GoogleAccessToken = value.(string)
		case FieldGoogleRefreshToken:
			creds.GoogleRefreshToken = value.(string)
		case FieldGoogleTokenExpiry:
			creds.GoogleTokenExpiry = ExpiryFromField(value)
		case FieldGoogleReauthNeeded:
			creds.GoogleReauthRequired = value.(bool)
		case FieldCanvasDomain:
			creds.CanvasDomain = value.(string)
		case FieldCanvasAccessToken:
			creds.CanvasAccessToken = value.(string)
		}
	}
}
