package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrCredentialsNotConfigured means the gateway has no service client
	// id/secret, so service-identity operations can't run.
	ErrCredentialsNotConfigured = errors.New("exchange: service credentials not configured")

	// ErrReauthRequired means the caller's SSO token is expired or invalid and
	// no exchange was attempted. The browser must go back to the identity
	// portal; retrying here is pointless.
	ErrReauthRequired = errors.New("exchange: reauthentication required")
)

// ExchangeError is a classified failure from the downstream token endpoint.
// It preserves the upstream status and OAuth2 error so callers can log the
// real cause and map it to 401 vs 502.
type ExchangeError struct {
	// Status is the HTTP status the token endpoint returned (0 for transport
	// failures such as timeouts).
	Status int

	// Code is the OAuth2 error code, e.g. "invalid_grant". "token_request_failed"
	// when the endpoint gave us nothing parseable.
	Code string

	// Description is the upstream error_description, if any.
	Description string
}

func (e *ExchangeError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("exchange: token request failed (%d): %s", e.Status, e.Code)
	}
	return fmt.Sprintf("exchange: token request failed (%d): %s: %s", e.Status, e.Code, e.Description)
}

// Transient reports whether the failure is worth one retry. Identity-level
// rejections (4xx) never are.
func (e *ExchangeError) Transient() bool {
	return e.Status == 0 || e.Status >= 500
}

// parseExchangeError builds an ExchangeError from a non-2xx token endpoint body.
func parseExchangeError(status int, body []byte) *ExchangeError {
	var wire struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		return &ExchangeError{Status: status, Code: wire.Error, Description: wire.ErrorDescription}
	}
	return &ExchangeError{Status: status, Code: "token_request_failed", Description: string(body)}
}
