// Package lms integrates with the user's Canvas tenant using a static API
// key: listing active courses and upcoming assignments. Each user brings
// their own tenant domain, so every call is built against a per-user base
// URL.
package lms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"coursehub/internal/circuitbreaker"
	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
	"coursehub/internal/fetch"
	"coursehub/internal/models"
	"coursehub/internal/storage"
)

// Course is an active enrollment on the user's tenant.
type Course struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code,omitempty"`
}

// Assignment is an upcoming assignment in a course. IDs are strings locally
// even though the provider sends numbers.
type Assignment struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	PointsPossible float64    `json:"points_possible,omitempty"`
	HTMLURL        string     `json:"html_url,omitempty"`
}

// CredentialStore is the slice of the storage boundary the client needs.
type CredentialStore interface {
	GetCredentials(ctx context.Context, userID string) (*models.Credentials, error)
	UpsertCredentialFields(ctx context.Context, userID string, fields map[string]interface{}) error
}

// Cache is an optional read-through cache for course listings.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Config holds the LMS client settings.
type Config struct {
	// PerPage is the page size requested from the tenant.
	PerPage int
	Timeout time.Duration
	// CourseCacheTTL bounds how stale a cached course list may be.
	CourseCacheTTL time.Duration
	Fetch          fetch.Config
}

// Client is the LMS integration.
type Client struct {
	config     Config
	store      CredentialStore
	cache      Cache
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     logging.Logger
}

// NewClient creates the LMS client. cache and breaker may be nil.
func NewClient(config Config, store CredentialStore, cache Cache, breaker *circuitbreaker.Breaker, logger logging.Logger) *Client {
	if config.PerPage <= 0 {
		config.PerPage = 50
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.CourseCacheTTL == 0 {
		config.CourseCacheTTL = 5 * time.Minute
	}
	if config.Fetch.MaxRetries == 0 && config.Fetch.RetryDelay == 0 {
		config.Fetch = fetch.DefaultConfig()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Client{
		config:     config,
		store:      store,
		cache:      cache,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    breaker,
		logger:     logger,
	}
}

// NormalizeDomain turns user input like "school.instructure.com/" into a
// canonical https base URL.
func NormalizeDomain(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimSuffix(domain, "/")
	if domain == "" {
		return "", fmt.Errorf("domain is empty")
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}

	parsed, err := url.Parse(domain)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid domain %q", domain)
	}
	return domain, nil
}

// Connect verifies the domain and API key against the tenant and persists
// them. The verification call is the only place a bad key is caught early
// instead of on first use.
func (c *Client) Connect(ctx context.Context, userID, domain, accessToken string) error {
	if accessToken == "" {
		return errors.ValidationError("canvas access token is required")
	}

	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return errors.ValidationError(err.Error())
	}

	var self struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.get(ctx, normalized+"/api/v1/users/self", accessToken, &self); err != nil {
		return err
	}

	err = c.store.UpsertCredentialFields(ctx, userID, map[string]interface{}{
		storage.FieldCanvasDomain:      normalized,
		storage.FieldCanvasAccessToken: accessToken,
	})
	if err != nil {
		return err
	}

	c.logger.Info("canvas account connected",
		logging.Field{Key: "user_id", Value: userID},
		logging.Field{Key: "domain", Value: normalized})
	return nil
}

// Disconnect clears the stored domain and key.
func (c *Client) Disconnect(ctx context.Context, userID string) error {
	return c.store.UpsertCredentialFields(ctx, userID, map[string]interface{}{
		storage.FieldCanvasDomain:      "",
		storage.FieldCanvasAccessToken: "",
	})
}

// Linked reports whether the user has a Canvas credential on file.
func (c *Client) Linked(ctx context.Context, userID string) (bool, error) {
	creds, err := c.store.GetCredentials(ctx, userID)
	if err != nil {
		return false, err
	}
	return creds.CanvasLinked(), nil
}

func (c *Client) credentials(ctx context.Context, userID string) (*models.Credentials, error) {
	creds, err := c.store.GetCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !creds.CanvasLinked() {
		return nil, errors.NotLinkedError("canvas")
	}
	return creds, nil
}

type wireCourse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
}

type wireAssignment struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	DueAt          string  `json:"due_at"`
	PointsPossible float64 `json:"points_possible"`
	HTMLURL        string  `json:"html_url"`
}

// ListActiveCourses lists the user's active enrollments, read through the
// cache when one is configured.
func (c *Client) ListActiveCourses(ctx context.Context, userID string) ([]Course, error) {
	creds, err := c.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	cacheKey := "lms:courses:" + userID
	if c.cache != nil {
		var cached []Course
		if hit, err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	first := fmt.Sprintf("%s/api/v1/courses?enrollment_state=active&per_page=%d",
		creds.CanvasDomain, c.config.PerPage)

	result := walkPages[wireCourse](c, ctx, first, creds.CanvasAccessToken)
	if result.Err != nil {
		return nil, result.Err
	}

	courses := make([]Course, 0, len(result.Items))
	for _, item := range result.Items {
		// Unnamed enrollments are access-restricted shells.
		if item.Name == "" {
			continue
		}
		courses = append(courses, Course{
			ID:         strconv.FormatInt(item.ID, 10),
			Name:       item.Name,
			CourseCode: item.CourseCode,
		})
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, courses, c.config.CourseCacheTTL); err != nil {
			c.logger.Debug("failed to cache course list", logging.Err(err))
		}
	}
	return courses, nil
}

// ListCourseAssignments lists upcoming assignments for one course.
func (c *Client) ListCourseAssignments(ctx context.Context, userID, courseID string) ([]Assignment, error) {
	if courseID == "" {
		return nil, errors.ValidationError("course ID is required")
	}

	creds, err := c.credentials(ctx, userID)
	if err != nil {
		return nil, err
	}

	first := fmt.Sprintf("%s/api/v1/courses/%s/assignments?bucket=upcoming&per_page=%d",
		creds.CanvasDomain, url.PathEscape(courseID), c.config.PerPage)

	result := walkPages[wireAssignment](c, ctx, first, creds.CanvasAccessToken)
	if result.Err != nil {
		return nil, result.Err
	}

	assignments := make([]Assignment, 0, len(result.Items))
	for _, item := range result.Items {
		assignment := Assignment{
			ID:             strconv.FormatInt(item.ID, 10),
			Name:           item.Name,
			Description:    item.Description,
			PointsPossible: item.PointsPossible,
			HTMLURL:        item.HTMLURL,
		}
		if item.DueAt != "" {
			if due, err := time.Parse(time.RFC3339, item.DueAt); err == nil {
				utc := due.UTC()
				assignment.DueAt = &utc
			}
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

// walkPages follows Link rel="next" headers through a tenant collection.
// The continuation token is the next page's full URL.
func walkPages[T any](c *Client, ctx context.Context, firstURL, accessToken string) fetch.Result[T] {
	return fetch.All(ctx, c.config.Fetch, func(ctx context.Context, pageToken string) (*fetch.Page[T], error) {
		pageURL := pageToken
		if pageURL == "" {
			pageURL = firstURL
		}

		var page *fetch.Page[T]
		call := func() error {
			body, next, err := c.fetchPage(ctx, pageURL, accessToken)
			if err != nil {
				return err
			}

			var items []T
			if err := json.Unmarshal(body, &items); err != nil {
				return errors.InternalError("malformed lms response", err)
			}
			page = &fetch.Page[T]{Items: items, NextToken: next}
			return nil
		}

		var err error
		if c.breaker != nil {
			err = c.breaker.Execute(ctx, call)
		} else {
			err = call()
		}
		if err != nil {
			return nil, err
		}
		return page, nil
	})
}

func (c *Client) fetchPage(ctx context.Context, pageURL, accessToken string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", errors.InternalError("failed to build lms request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", errors.TimeoutError("lms request")
		}
		return nil, "", errors.TransientError("lms tenant unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, "", errors.TransientError("failed to read lms response", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, fetch.NextFromLinkHeader(resp.Header.Get("Link")), nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, "", errors.ReauthRequiredError("canvas")
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", errors.TransientError(
			fmt.Sprintf("lms tenant returned %d", resp.StatusCode), nil)
	default:
		return nil, "", errors.ProviderRejectedError(resp.StatusCode, lmsMessage(body))
	}
}

func lmsMessage(body []byte) string {
	var wrapper struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Errors) > 0 {
		return wrapper.Errors[0].Message
	}
	return "lms tenant rejected the request"
}

func (c *Client) get(ctx context.Context, reqURL, accessToken string, out interface{}) error {
	call := func() error {
		body, _, err := c.fetchPage(ctx, reqURL, accessToken)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return errors.InternalError("malformed lms response", err)
		}
		return nil
	}

	if c.breaker != nil {
		return c.breaker.Execute(ctx, call)
	}
	return call()
}
