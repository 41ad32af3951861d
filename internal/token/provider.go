// Package token manages the delegated-credential lifecycle: exchanging a
// long-lived refresh token for short-lived access tokens, persisting the
// result and classifying the identity provider's failure modes.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coursehub/internal/circuitbreaker"
	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
)

// TokenResponse is the identity provider's answer to a refresh grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// ProviderClient exchanges a refresh token for a fresh access token.
type ProviderClient interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// ProviderConfig holds the identity provider settings. All values are
// injected; there is no process-wide default.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

// Validate checks that the provider is fully configured.
func (c ProviderConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if c.TokenURL == "" {
		return fmt.Errorf("token URL is required")
	}
	return nil
}

// HTTPProviderClient talks to the identity provider's token endpoint over
// HTTP, behind a circuit breaker.
type HTTPProviderClient struct {
	config     ProviderConfig
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	logger     logging.Logger
}

// NewProviderClient creates a token endpoint client. A nil breaker disables
// circuit breaking.
func NewProviderClient(config ProviderConfig, breaker *circuitbreaker.Breaker, logger logging.Logger) (*HTTPProviderClient, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("identity provider misconfigured: %v", err))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &HTTPProviderClient{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger,
	}, nil
}

// Refresh performs the refresh_token grant. Error classification:
// invalid_grant means the user revoked access (reauth required, never
// retried); 5xx, 429 and transport failures are transient; any other 4xx is
// a provider rejection carried verbatim.
func (c *HTTPProviderClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, errors.ValidationError("refresh token is empty")
	}

	var response *TokenResponse
	call := func() error {
		var err error
		response, err = c.refresh(ctx, refreshToken)
		return err
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(ctx, call); err != nil {
			return nil, err
		}
		return response, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *HTTPProviderClient) refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.InternalError("failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.TimeoutError("token refresh")
		}
		return nil, errors.TransientError("token endpoint unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.TransientError("failed to read token response", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var tokenResp TokenResponse
		if err := json.Unmarshal(body, &tokenResp); err != nil {
			return nil, errors.InternalError("malformed token response", err)
		}
		if tokenResp.AccessToken == "" {
			return nil, errors.InternalError("token response missing access_token", nil)
		}
		return &tokenResp, nil
	}

	return nil, c.classifyFailure(resp.StatusCode, body)
}

func (c *HTTPProviderClient) classifyFailure(statusCode int, body []byte) error {
	var providerErr struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &providerErr)

	if providerErr.Error == "invalid_grant" {
		c.logger.Warn("refresh token rejected by identity provider",
			logging.Field{Key: "error", Value: providerErr.Error})
		return errors.ReauthRequiredError("google")
	}

	if statusCode >= 500 || statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout {
		return errors.TransientError(
			fmt.Sprintf("token endpoint returned %d", statusCode), nil)
	}

	msg := providerErr.Description
	if msg == "" {
		msg = fmt.Sprintf("token endpoint rejected refresh: %s", providerErr.Error)
	}
	return errors.ProviderRejectedError(statusCode, msg)
}
