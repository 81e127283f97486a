// Package closetapi provides a client for the Closet backend auth API
package closetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
	"github.com/closetapp/closetd/internal/models"
)

const (
	DefaultBaseURL   = "https://api.closetapp.io"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Compile-time interface check
var _ interfaces.AuthGateway = (*Client)(nil)

// Client implements the AuthGateway interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client (for tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Closet API client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Closet API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// post performs a rate-limited POST request with a JSON body. result may be
// nil when the response body is not needed.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", path).Msg("Closet API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrorMessage(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Endpoint:   path,
		}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readErrorMessage extracts an error message from a failed response body.
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return "request failed"
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return string(data)
}

// Refresh exchanges the stored credential pair for a fresh session.
func (c *Client) Refresh(ctx context.Context, creds models.TokenPair) (*models.RefreshResult, error) {
	req := struct {
		RefreshToken string `json:"refresh_token"`
	}{RefreshToken: creds.RefreshToken}

	var result models.RefreshResult
	if err := c.post(ctx, "/v1/auth/refresh", req, &result); err != nil {
		return nil, err
	}
	if result.Session.Credentials.AccessToken == "" || result.Session.Credentials.RefreshToken == "" {
		return nil, fmt.Errorf("refresh response missing credentials")
	}
	return &result, nil
}

// RequestPasswordReset asks the backend to email a recovery link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	req := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.post(ctx, "/v1/auth/reset/request", req, nil)
}

// ConfirmPasswordReset redeems a one-time recovery token.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	req := struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}{Token: token, Password: newPassword}
	return c.post(ctx, "/v1/auth/reset/confirm", req, nil)
}

// SignOut revokes the session server-side.
func (c *Client) SignOut(ctx context.Context, creds models.TokenPair) error {
	req := struct {
		RefreshToken string `json:"refresh_token"`
	}{RefreshToken: creds.RefreshToken}
	return c.post(ctx, "/v1/auth/signout", req, nil)
}
