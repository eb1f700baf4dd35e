// Package apiclient talks to the supportdesk JSON API.
//
// Client implements loginview.Authenticator, so the same login form logic can run
// in a terminal against a remote server.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/shindakun/supportdesk/internal/loginview"
)

const (
	sessionsPath = "/api/v1/sessions"
	mePath       = "/api/v1/me"

	// maxErrorBody caps how much of a failed response is read
	maxErrorBody = 64 * 1024
)

// Me is the signed-in agent as reported by the server
type Me struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// errorEnvelope is the body of every non-2xx API response
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client is an API client that keeps the session cookie between calls
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled cleanhttp client. hc is copied, so giving the
// copy a cookie jar leaves the caller's client untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.httpClient = &clone
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: cleanhttp.DefaultPooledClient(),
		userAgent:  "supportdesk-cli",
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}

	return c, nil
}

// Login posts the credentials and keeps the returned session cookie.
// A rejected login is returned as a *loginview.Rejection carrying the server's message.
func (c *Client) Login(ctx context.Context, creds loginview.Credentials) error {
	body, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, sessionsPath, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeRejection(resp)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Logout ends the current session
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, sessionsPath, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeRejection(resp)
	}
	return nil
}

// Me returns the agent behind the current session
func (c *Client) Me(ctx context.Context) (*Me, error) {
	resp, err := c.do(ctx, http.MethodGet, mePath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, decodeRejection(resp)
	}

	var me Me
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &me, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	endpoint := c.baseURL.JoinPath(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeRejection turns an error response into a Rejection. Bodies that are not the
// JSON error envelope produce a Rejection with no message.
func decodeRejection(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	statusErr := fmt.Errorf("server returned %s", resp.Status)
	if err != nil {
		return &loginview.Rejection{Err: statusErr}
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return &loginview.Rejection{Err: statusErr}
	}

	return &loginview.Rejection{
		Code:    envelope.Error.Code,
		Message: envelope.Error.Message,
		Err:     statusErr,
	}
}
