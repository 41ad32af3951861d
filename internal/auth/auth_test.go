package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-at-least-32-chars!!"

func TestIssueAndVerify(t *testing.T) {
	a, err := New(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := a.Issue("user-1")
	require.NoError(t, err)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestVerify_RejectsTamperedToken(t *testing.T) {
	a, err := New(testSecret, time.Hour)
	require.NoError(t, err)

	other, err := New("another-secret-that-is-32-chars-long!", time.Hour)
	require.NoError(t, err)

	token, err := other.Issue("user-1")
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.Error(t, err)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	a, err := New(testSecret, time.Millisecond)
	require.NoError(t, err)

	token, err := a.Issue("user-1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = a.Verify(token)
	assert.Error(t, err)
}

func TestNew_RejectsShortSecret(t *testing.T) {
	_, err := New("short", time.Hour)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	a, err := New(testSecret, time.Hour)
	require.NoError(t, err)

	var gotUserID string
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r)
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/classes", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/classes", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	token, err := a.Issue("user-1")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/classes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotUserID)
}
