// Package api is the REST client for the storefront backend. Every
// response arrives in a {status, message, data} envelope; any status
// string that is not 2xx-ish becomes an *Error carrying the server's
// message, which callers display directly.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ticket-storefront/shared"
)

// Envelope is the backend's uniform response wrapper. Status is a string
// like "200 OK" or "404 NOT_FOUND".
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Error is an application-level error decoded from a non-success
// envelope. Network and timeout failures surface as ordinary transport
// errors instead, so the two are distinguishable.
type Error struct {
	Status  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsNotFound reports whether err is an application error with a 404-ish
// status. Some list endpoints treat that as an empty result rather than
// a failure.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && strings.HasPrefix(apiErr.Status, "404")
}

// TokenFunc supplies the current bearer token, re-read on every request.
type TokenFunc func() string

// Client talks to the storefront backend.
type Client struct {
	baseURL    string
	token      TokenFunc
	httpClient *http.Client
}

// NewClient creates a backend client. The token accessor may be nil for
// unauthenticated use.
func NewClient(baseURL string, token TokenFunc) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: shared.RESTTimeout,
		},
	}
}

// do performs a request, unwraps the envelope and decodes data into out
// (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !isSuccess(env.Status) {
		return &Error{Status: env.Status, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// get fetches into out; when allowNotFound is set, a 404-ish envelope
// leaves out at its zero value and returns nil.
func (c *Client) get(ctx context.Context, path string, out any, allowNotFound bool) error {
	err := c.do(ctx, http.MethodGet, path, nil, out)
	if err != nil && allowNotFound && IsNotFound(err) {
		return nil
	}
	return err
}

func isSuccess(status string) bool {
	return strings.HasPrefix(status, "2")
}

// HealthCheck verifies the backend is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+shared.APIEndpointHealth, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}
	return nil
}
