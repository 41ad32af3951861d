// Package calendar integrates with the user's Google calendar: creating
// events on their behalf and listing upcoming ones. All calls go out with a
// token obtained from the lifecycle manager, never a stored one.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"coursehub/internal/circuitbreaker"
	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
	"coursehub/internal/fetch"
)

// TokenSource hands out a currently valid access token for a user.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, userID string) (string, error)
}

// Event is the normalized event shape: one form for timed and all-day
// events, with the all-day case flagged instead of encoded in a different
// field set.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	HTMLLink    string    `json:"html_link,omitempty"`
}

// EventInput is a creation request. Start and End accept RFC 3339, a naive
// local datetime (no offset) or a bare date; naive values get the configured
// default offset, bare dates make an all-day event.
type EventInput struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// Config holds the calendar client settings.
type Config struct {
	// BaseURL is the calendar API root, e.g.
	// https://www.googleapis.com/calendar/v3
	BaseURL string
	// DefaultUTCOffset is appended to naive datetimes, e.g. "-08:00".
	DefaultUTCOffset string
	// PageSize is the per-page maxResults for listings.
	PageSize int
	Timeout  time.Duration
	Fetch    fetch.Config
}

// Client is the calendar integration.
type Client struct {
	config     Config
	tokens     TokenSource
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     logging.Logger
}

// NewClient creates the calendar client. A nil breaker disables circuit
// breaking.
func NewClient(config Config, tokens TokenSource, breaker *circuitbreaker.Breaker, logger logging.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.ConfigError("calendar base URL is required")
	}
	if config.DefaultUTCOffset == "" {
		config.DefaultUTCOffset = "-08:00"
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.Fetch.MaxRetries == 0 && config.Fetch.RetryDelay == 0 {
		config.Fetch = fetch.DefaultConfig()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Client{
		config:     config,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    breaker,
		logger:     logger,
	}, nil
}

// wire shapes

type eventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type wireEvent struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
	Status      string    `json:"status,omitempty"`
}

type eventPage struct {
	Items         []wireEvent `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

// CreateEvent submits a new event to the user's primary calendar. Creation
// is not idempotent, so it is never retried; a provider rejection surfaces
// verbatim with the provider's status code.
func (c *Client) CreateEvent(ctx context.Context, userID string, input EventInput) (*Event, error) {
	if input.Summary == "" {
		return nil, errors.ValidationError("event summary is required")
	}
	if input.Start == "" || input.End == "" {
		return nil, errors.ValidationError("event start and end are required")
	}

	accessToken, err := c.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	start, err := c.normalizeEventTime(input.Start)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid start: %v", err))
	}
	end, err := c.normalizeEventTime(input.End)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid end: %v", err))
	}

	body, err := json.Marshal(wireEvent{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
		Start:       start,
		End:         end,
	})
	if err != nil {
		return nil, errors.InternalError("failed to encode event", err)
	}

	var created wireEvent
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.config.BaseURL+"/calendars/primary/events", bytes.NewReader(body))
		if err != nil {
			return errors.InternalError("failed to build event request", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")

		return c.do(req, &created)
	}

	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}

	event, err := normalizeEvent(created)
	if err != nil {
		return nil, errors.InternalError("provider returned unparseable event", err)
	}
	return event, nil
}

// ListUpcomingEvents lists events from now forward, recurring ones
// expanded, ordered by start time. On a mid-walk failure the events
// collected so far are returned along with the error.
func (c *Client) ListUpcomingEvents(ctx context.Context, userID string, maxResults int) ([]Event, error) {
	accessToken, err := c.tokens.GetValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	fetchConfig := c.config.Fetch
	if maxResults > 0 {
		fetchConfig.MaxItems = maxResults
	}
	timeMin := time.Now().UTC().Format(time.RFC3339)

	result := fetch.All(ctx, fetchConfig, func(ctx context.Context, pageToken string) (*fetch.Page[wireEvent], error) {
		params := url.Values{}
		params.Set("timeMin", timeMin)
		params.Set("singleEvents", "true")
		params.Set("orderBy", "startTime")
		params.Set("maxResults", fmt.Sprintf("%d", c.config.PageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page eventPage
		call := func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet,
				c.config.BaseURL+"/calendars/primary/events?"+params.Encode(), nil)
			if err != nil {
				return errors.InternalError("failed to build list request", err)
			}
			req.Header.Set("Authorization", "Bearer "+accessToken)

			return c.do(req, &page)
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

		return &fetch.Page[wireEvent]{Items: page.Items, NextToken: page.NextPageToken}, nil
	})

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Status == "cancelled" {
			continue
		}
		event, err := normalizeEvent(item)
		if err != nil {
			c.logger.Warn("skipping unparseable event",
				logging.Field{Key: "event_id", Value: item.ID},
				logging.Err(err))
			continue
		}
		events = append(events, *event)
	}

	return events, result.Err
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return errors.TimeoutError("calendar request")
		}
		return errors.TransientError("calendar API unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.TransientError("failed to read calendar response", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := json.Unmarshal(body, out); err != nil {
			return errors.InternalError("malformed calendar response", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.ReauthRequiredError("google")
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return errors.TransientError(
			fmt.Sprintf("calendar API returned %d", resp.StatusCode), nil)
	default:
		return errors.ProviderRejectedError(resp.StatusCode, providerMessage(body))
	}
}

func providerMessage(body []byte) string {
	var wrapper struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Message != "" {
		return wrapper.Error.Message
	}
	return "calendar API rejected the request"
}

// normalizeEventTime turns an input timestamp into the wire shape. Naive
// datetimes (no offset) are anchored to the configured default offset rather
// than silently becoming UTC.
func (c *Client) normalizeEventTime(value string) (eventTime, error) {
	if _, err := time.Parse("2006-01-02", value); err == nil {
		return eventTime{Date: value}, nil
	}
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return eventTime{DateTime: value}, nil
	}
	if _, err := time.Parse("2006-01-02T15:04:05", value); err == nil {
		return eventTime{DateTime: value + c.config.DefaultUTCOffset}, nil
	}
	return eventTime{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// normalizeEvent collapses the provider's two event time encodings into the
// single normalized shape.
func normalizeEvent(w wireEvent) (*Event, error) {
	event := &Event{
		ID:          w.ID,
		Summary:     w.Summary,
		Description: w.Description,
		Location:    w.Location,
		HTMLLink:    w.HTMLLink,
	}

	var err error
	if w.Start.Date != "" {
		event.AllDay = true
		event.Start, err = time.Parse("2006-01-02", w.Start.Date)
		if err != nil {
			return nil, err
		}
		event.End, err = time.Parse("2006-01-02", w.End.Date)
		if err != nil {
			return nil, err
		}
		return event, nil
	}

	event.Start, err = time.Parse(time.RFC3339, w.Start.DateTime)
	if err != nil {
		return nil, err
	}
	event.End, err = time.Parse(time.RFC3339, w.End.DateTime)
	if err != nil {
		return nil, err
	}
	return event, nil
}
