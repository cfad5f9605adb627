package agentsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the agent server or ingest service.
type APIError struct {
	// Status is the upstream HTTP status code.
	Status int

	// Code is the machine-readable error code, when the upstream sent one.
	Code string

	// Message is the human-readable description.
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agentsdk: upstream %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("agentsdk: upstream %d: %s", e.Status, e.Message)
}

// Unauthorized reports whether the upstream rejected the bearer token. The
// gateway invalidates its cached token on this so the next request exchanges
// a fresh one.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// NotFound reports whether the upstream said the resource does not exist.
func (e *APIError) NotFound() bool {
	return e.Status == http.StatusNotFound
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	// Upstream services speak two error dialects.
	var oauth struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauth); err == nil && oauth.Error != "" {
		apiErr.Code = oauth.Error
		apiErr.Message = oauth.ErrorDescription
		return apiErr
	}

	var generic struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &generic); err == nil && (generic.Code != "" || generic.Message != "") {
		apiErr.Code = generic.Code
		apiErr.Message = generic.Message
		return apiErr
	}

	apiErr.Message = http.StatusText(status)
	return apiErr
}
