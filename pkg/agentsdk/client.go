// Package agentsdk is a typed client for the agent-server admin API and the
// ingest service. The gateway binds a per-request downstream token with
// Client.Bearer; nothing in this package acquires tokens itself.
package agentsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to one service base URL. It is safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Session is a Client bound to one bearer token. Sessions are cheap; the
// gateway creates one per incoming request.
type Session struct {
	client *Client
	token  string
}

// Bearer binds a downstream access token to the client.
func (c *Client) Bearer(token string) *Session {
	return &Session{client: c, token: token}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

func (s *Session) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("agentsdk: marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.client.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("agentsdk: build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agentsdk: send request: %w", err)
	}

	return resp, nil
}

// decodeJSON decodes the response body into target, or returns a typed
// *APIError for any unexpected status.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agentsdk: read response: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("agentsdk: decode response: %w", err)
	}

	return nil
}

func checkStatusNoContent(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return parseAPIError(resp.StatusCode, body)
	}

	return nil
}
