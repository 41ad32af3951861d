package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
	"coursehub/internal/fetch"
	"coursehub/internal/storage"
)

func fastConfig() Config {
	return Config{
		PerPage: 2,
		Fetch:   fetch.Config{MaxRetries: 1, RetryDelay: time.Millisecond},
	}
}

func seedCanvas(t *testing.T, store *storage.MemoryStorage, userID, domain, accessToken string) {
	t.Helper()
	require.NoError(t, store.UpsertCredentialFields(context.Background(), userID, map[string]interface{}{
		storage.FieldCanvasDomain:      domain,
		storage.FieldCanvasAccessToken: accessToken,
	}))
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "school.instructure.com", want: "https://school.instructure.com"},
		{in: "school.instructure.com/", want: "https://school.instructure.com"},
		{in: "https://school.instructure.com", want: "https://school.instructure.com"},
		{in: "  school.test  ", want: "https://school.test"},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeDomain(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestConnect_VerifiesAndPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/self", r.URL.Path)
		assert.Equal(t, "Bearer canvas-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":7,"name":"Sam Student"}`))
	}))
	defer server.Close()

	store := storage.NewMemoryStorage()
	client := NewClient(fastConfig(), store, nil, nil, logging.NewNoOpLogger())

	require.NoError(t, client.Connect(context.Background(), "user-1", server.URL, "canvas-key"))

	creds, err := store.GetCredentials(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, server.URL, creds.CanvasDomain)
	assert.Equal(t, "canvas-key", creds.CanvasAccessToken)
}

func TestConnect_RejectsBadKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := storage.NewMemoryStorage()
	client := NewClient(fastConfig(), store, nil, nil, logging.NewNoOpLogger())

	err := client.Connect(context.Background(), "user-1", server.URL, "bad-key")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeReauthRequired))

	// Nothing persisted on a failed verification.
	creds, err := store.GetCredentials(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestConnect_ValidatesInput(t *testing.T) {
	client := NewClient(fastConfig(), storage.NewMemoryStorage(), nil, nil, logging.NewNoOpLogger())

	err := client.Connect(context.Background(), "user-1", "school.test", "")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	err = client.Connect(context.Background(), "user-1", "", "key")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestListActiveCourses_FollowsLinkHeader(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/courses", r.URL.Path)
		assert.Equal(t, "active", r.URL.Query().Get("enrollment_state"))
		assert.Equal(t, "Bearer canvas-key", r.Header.Get("Authorization"))

		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(
				`<%s/api/v1/courses?enrollment_state=active&per_page=2&page=2>; rel="next"`, server.URL))
			w.Write([]byte(`[{"id":101,"name":"Biology","course_code":"BIO-101"},
				{"id":102,"name":"","course_code":"SHELL-1"}]`))
			return
		}

		w.Write([]byte(`[{"id":103,"name":"Chemistry","course_code":"CHEM-201"}]`))
	}))
	defer server.Close()

	store := storage.NewMemoryStorage()
	seedCanvas(t, store, "user-1", server.URL, "canvas-key")
	client := NewClient(fastConfig(), store, nil, nil, logging.NewNoOpLogger())

	courses, err := client.ListActiveCourses(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, Course{ID: "101", Name: "Biology", CourseCode: "BIO-101"}, courses[0])
	assert.Equal(t, Course{ID: "103", Name: "Chemistry", CourseCode: "CHEM-201"}, courses[1])
}

func TestListActiveCourses_NotLinked(t *testing.T) {
	client := NewClient(fastConfig(), storage.NewMemoryStorage(), nil, nil, logging.NewNoOpLogger())

	_, err := client.ListActiveCourses(context.Background(), "user-1")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotLinked))
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func TestListActiveCourses_ReadsThroughCache(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[{"id":101,"name":"Biology","course_code":"BIO-101"}]`))
	}))
	defer server.Close()

	store := storage.NewMemoryStorage()
	seedCanvas(t, store, "user-1", server.URL, "canvas-key")
	client := NewClient(fastConfig(), store, newMapCache(), nil, logging.NewNoOpLogger())

	for i := 0; i < 3; i++ {
		courses, err := client.ListActiveCourses(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Len(t, courses, 1)
	}
	assert.Equal(t, 1, calls)
}

func TestListCourseAssignments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/courses/101/assignments", r.URL.Path)
		assert.Equal(t, "upcoming", r.URL.Query().Get("bucket"))
		w.Write([]byte(`[
			{"id":42,"name":"Problem set 3","due_at":"2026-03-06T07:59:00Z",
				"points_possible":20,"html_url":"https://school.test/assignments/42"},
			{"id":43,"name":"Reading response","due_at":null}
		]`))
	}))
	defer server.Close()

	store := storage.NewMemoryStorage()
	seedCanvas(t, store, "user-1", server.URL, "canvas-key")
	client := NewClient(fastConfig(), store, nil, nil, logging.NewNoOpLogger())

	assignments, err := client.ListCourseAssignments(context.Background(), "user-1", "101")
	require.NoError(t, err)
	require.Len(t, assignments, 2)

	assert.Equal(t, "42", assignments[0].ID)
	assert.Equal(t, "Problem set 3", assignments[0].Name)
	require.NotNil(t, assignments[0].DueAt)
	assert.Equal(t, time.Date(2026, 3, 6, 7, 59, 0, 0, time.UTC), *assignments[0].DueAt)
	assert.Equal(t, float64(20), assignments[0].PointsPossible)

	assert.Equal(t, "43", assignments[1].ID)
	assert.Nil(t, assignments[1].DueAt)
}

func TestListCourseAssignments_ProviderRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"errors":[{"message":"not authorized to view this course"}]}`))
	}))
	defer server.Close()

	store := storage.NewMemoryStorage()
	seedCanvas(t, store, "user-1", server.URL, "canvas-key")
	client := NewClient(fastConfig(), store, nil, nil, logging.NewNoOpLogger())

	_, err := client.ListCourseAssignments(context.Background(), "user-1", "101")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeProviderRejected))
	assert.Equal(t, http.StatusForbidden, errors.ProviderStatusCode(err))
}

func TestDisconnect(t *testing.T) {
	store := storage.NewMemoryStorage()
	seedCanvas(t, store, "user-1", "https://school.test", "canvas-key")
	client := NewClient(fastConfig(), store, nil, nil, logging.NewNoOpLogger())

	require.NoError(t, client.Disconnect(context.Background(), "user-1"))

	linked, err := client.Linked(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, linked)
}
