package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTPProviderClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewProviderClient(ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     server.URL,
	}, nil, logging.NewNoOpLogger())
	require.NoError(t, err)
	return client
}

func TestProviderClient_RefreshSuccess(t *testing.T) {
	client := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-2","expires_in":3600,"token_type":"Bearer"}`))
	})

	resp, err := client.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", resp.AccessToken)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Empty(t, resp.RefreshToken)
}

func TestProviderClient_InvalidGrantMeansReauth(t *testing.T) {
	client := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	})

	_, err := client.Refresh(context.Background(), "rt-revoked")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeReauthRequired))
	assert.False(t, errors.IsRetryable(err))
}

func TestProviderClient_ServerErrorIsTransient(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusTooManyRequests} {
		client := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		_, err := client.Refresh(context.Background(), "rt-1")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeTransient), "status %d", status)
		assert.True(t, errors.IsRetryable(err))
	}
}

func TestProviderClient_OtherClientErrorIsRejection(t *testing.T) {
	client := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"access_denied","error_description":"rate limit for this client"}`))
	})

	_, err := client.Refresh(context.Background(), "rt-1")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeProviderRejected))
	assert.Equal(t, http.StatusForbidden, errors.ProviderStatusCode(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestProviderClient_EmptyRefreshToken(t *testing.T) {
	client := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider must not be called")
	})

	_, err := client.Refresh(context.Background(), "")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestProviderClient_MissingConfig(t *testing.T) {
	_, err := NewProviderClient(ProviderConfig{ClientID: "id"}, nil, logging.NewNoOpLogger())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}
