package agentsdk

import (
	"context"
	"net/http"
)

// ListClientApps returns all registered API clients.
func (s *Session) ListClientApps(ctx context.Context) (*ListClientAppsResponse, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/v1/clients", nil)
	if err != nil {
		return nil, err
	}

	var out ListClientAppsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateClientApp registers a new API client. The response carries the
// client secret exactly once.
func (s *Session) CreateClientApp(ctx context.Context, spec ClientAppSpec) (*CreateClientAppResponse, error) {
	resp, err := s.doRequest(ctx, http.MethodPost, "/v1/clients", spec)
	if err != nil {
		return nil, err
	}

	var out CreateClientAppResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteClientApp removes an API client.
func (s *Session) DeleteClientApp(ctx context.Context, id string) error {
	resp, err := s.doRequest(ctx, http.MethodDelete, "/v1/clients/"+id, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
