// Package proxy moves bytes between the browser and the upstream services:
// raw REST forwarding for pass-through routes and an SSE relay for agent run
// streams.
package proxy

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstreamUnavailable wraps transport-level failures reaching an upstream.
var ErrUpstreamUnavailable = errors.New("proxy: upstream unavailable")

// UpstreamStatusError is a non-2xx upstream response detected before any
// bytes were relayed to the client; the handler can still write a clean JSON
// error.
type UpstreamStatusError struct {
	Status int
	Body   string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("proxy: upstream returned %d", e.Status)
}

// Forwarder forwards requests verbatim to one upstream base URL, swapping
// the inbound credentials for the downstream bearer token.
type Forwarder struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewForwarder creates a Forwarder with a REST-appropriate timeout.
func NewForwarder(baseURL string) *Forwarder {
	return &Forwarder{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// hopHeaders are stripped in both directions.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forward relays the request to upstreamPath and copies the response back,
// returning the upstream status code. The inbound Cookie and Authorization
// headers never cross the boundary; only the downstream bearer does.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, upstreamPath, bearer string) (int, error) {
	target := f.BaseURL + upstreamPath
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		return 0, fmt.Errorf("proxy: build forward request: %w", err)
	}

	for key, values := range r.Header {
		if key == "Cookie" || key == "Authorization" {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	header := w.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}

	w.WriteHeader(resp.StatusCode)
	_, err = io.Copy(w, resp.Body)
	return resp.StatusCode, err
}
