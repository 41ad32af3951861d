package token

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
	"coursehub/internal/common/utils"
	"coursehub/internal/models"
	"coursehub/internal/storage"
)

// DefaultSafetyMargin is how close to expiry a stored access token is still
// considered usable. A token inside the margin is refreshed before use so it
// cannot expire mid-request.
const DefaultSafetyMargin = 60 * time.Second

// LinkState is the credential state reported to the status endpoint.
type LinkState string

const (
	LinkStateUnlinked       LinkState = "unlinked"
	LinkStateLinked         LinkState = "linked"
	LinkStateReauthRequired LinkState = "reauth_required"
)

// CredentialStore is the slice of the storage boundary the manager needs.
type CredentialStore interface {
	GetCredentials(ctx context.Context, userID string) (*models.Credentials, error)
	UpsertCredentialFields(ctx context.Context, userID string, fields map[string]interface{}) error
}

// Locker takes an advisory cross-instance lock around a refresh. The lock is
// best effort; callers run fn regardless of whether it was acquired.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func() error) error
}

// ManagerConfig tunes the refresh behavior.
type ManagerConfig struct {
	SafetyMargin time.Duration
	Retry        utils.RetryConfig
}

// DefaultManagerConfig returns the standard refresh policy: 60s safety
// margin, three attempts with full-jitter exponential backoff from 500ms.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SafetyMargin: DefaultSafetyMargin,
		Retry: utils.RetryConfig{
			MaxAttempts:     3,
			InitialDelay:    500 * time.Millisecond,
			MaxDelay:        5 * time.Second,
			BackoffFactor:   2.0,
			FullJitter:      true,
			RetryableErrors: errors.IsRetryable,
		},
	}
}

// Manager owns the access-token lifecycle for the Google credential: hands
// out valid tokens, refreshes expired ones exactly once per user at a time
// and persists the outcome.
type Manager struct {
	store    CredentialStore
	provider ProviderClient
	locker   Locker
	logger   logging.Logger
	config   ManagerConfig
	group    singleflight.Group
}

// NewManager creates a token manager. locker may be nil when no distributed
// lock backend is configured; refresh is then serialized per process only.
func NewManager(store CredentialStore, provider ProviderClient, locker Locker, config ManagerConfig, logger logging.Logger) *Manager {
	if config.SafetyMargin <= 0 {
		config.SafetyMargin = DefaultSafetyMargin
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultManagerConfig().Retry
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Manager{
		store:    store,
		provider: provider,
		locker:   locker,
		logger:   logger,
		config:   config,
	}
}

// GetValidAccessToken returns an access token guaranteed to be valid for at
// least the safety margin, refreshing through the provider when needed.
// Concurrent callers for the same user share one refresh.
func (m *Manager) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	creds, err := m.store.GetCredentials(ctx, userID)
	if err != nil {
		return "", err
	}
	if !creds.GoogleLinked() {
		return "", errors.NotLinkedError("google")
	}
	if creds.GoogleReauthRequired {
		return "", errors.ReauthRequiredError("google")
	}
	if creds.GoogleTokenValid(m.config.SafetyMargin) {
		return creds.GoogleAccessToken, nil
	}

	return m.refresh(ctx, userID, m.config.SafetyMargin)
}

// RefreshExpiringWithin refreshes the user's access token if it expires
// inside the given window. Used by the proactive sweep; a token already
// valid past the window is left alone.
func (m *Manager) RefreshExpiringWithin(ctx context.Context, userID string, window time.Duration) error {
	_, err := m.refresh(ctx, userID, window)
	return err
}

func (m *Manager) refresh(ctx context.Context, userID string, margin time.Duration) (string, error) {
	result, err, _ := m.group.Do(userID, func() (interface{}, error) {
		if m.locker == nil {
			return m.doRefresh(ctx, userID, margin)
		}

		var token string
		lockErr := m.locker.WithLock(ctx, "token:refresh:"+userID, 30*time.Second, func() error {
			var err error
			token, err = m.doRefresh(ctx, userID, margin)
			return err
		})
		return token, lockErr
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context, userID string, margin time.Duration) (string, error) {
	// Re-read inside the flight: a racing caller (or another instance, when
	// the advisory lock was held) may have already refreshed.
	creds, err := m.store.GetCredentials(ctx, userID)
	if err != nil {
		return "", err
	}
	if !creds.GoogleLinked() {
		return "", errors.NotLinkedError("google")
	}
	// A revoked grant stays revoked; refreshing it again cannot succeed.
	if creds.GoogleReauthRequired {
		return "", errors.ReauthRequiredError("google")
	}
	if creds.GoogleTokenValid(margin) {
		return creds.GoogleAccessToken, nil
	}

	var response *TokenResponse
	err = utils.RetryWithBackoff(ctx, m.config.Retry, func() error {
		var err error
		response, err = m.provider.Refresh(ctx, creds.GoogleRefreshToken)
		return err
	})
	if err != nil {
		if errors.IsType(err, errors.ErrTypeReauthRequired) {
			m.markReauthRequired(ctx, userID)
		}
		return "", err
	}

	expiresIn := response.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	expiry := time.Now().Add(time.Duration(expiresIn) * time.Second).UTC()

	fields := map[string]interface{}{
		storage.FieldGoogleAccessToken:  response.AccessToken,
		storage.FieldGoogleTokenExpiry:  &expiry,
		storage.FieldGoogleReauthNeeded: false,
	}
	// Providers occasionally rotate the refresh token on use.
	if response.RefreshToken != "" && response.RefreshToken != creds.GoogleRefreshToken {
		fields[storage.FieldGoogleRefreshToken] = response.RefreshToken
	}

	// The refreshed token is valid whether or not it persists; a write
	// failure costs an extra refresh later, not correctness.
	if err := m.store.UpsertCredentialFields(ctx, userID, fields); err != nil {
		m.logger.Warn("failed to persist refreshed token",
			logging.Field{Key: "user_id", Value: userID},
			logging.Err(err))
	}

	return response.AccessToken, nil
}

func (m *Manager) markReauthRequired(ctx context.Context, userID string) {
	err := m.store.UpsertCredentialFields(ctx, userID, map[string]interface{}{
		storage.FieldGoogleReauthNeeded: true,
	})
	if err != nil {
		m.logger.Warn("failed to mark credential for re-authorization",
			logging.Field{Key: "user_id", Value: userID},
			logging.Err(err))
	}
}

// Disconnect clears the Google credential. The user returns to the unlinked
// state; there is no path back to linked without a new authorization.
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	return m.store.UpsertCredentialFields(ctx, userID, map[string]interface{}{
		storage.FieldGoogleAccessToken:  "",
		storage.FieldGoogleRefreshToken: "",
		storage.FieldGoogleTokenExpiry:  nil,
		storage.FieldGoogleReauthNeeded: false,
	})
}

// LinkedStatus reports the credential state machine position for a user.
func (m *Manager) LinkedStatus(ctx context.Context, userID string) (LinkState, error) {
	creds, err := m.store.GetCredentials(ctx, userID)
	if err != nil {
		return "", err
	}
	switch {
	case !creds.GoogleLinked():
		return LinkStateUnlinked, nil
	case creds.GoogleReauthRequired:
		return LinkStateReauthRequired, nil
	default:
		return LinkStateLinked, nil
	}
}
