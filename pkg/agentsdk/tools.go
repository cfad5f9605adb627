package agentsdk

import (
	"context"
	"net/http"
)

// ListTools returns all registered tools.
func (s *Session) ListTools(ctx context.Context) (*ListToolsResponse, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/v1/tools", nil)
	if err != nil {
		return nil, err
	}

	var out ListToolsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTool fetches one tool by ID.
func (s *Session) GetTool(ctx context.Context, id string) (*Tool, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/v1/tools/"+id, nil)
	if err != nil {
		return nil, err
	}

	var out Tool
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTool registers a new tool.
func (s *Session) CreateTool(ctx context.Context, spec ToolSpec) (*Tool, error) {
	resp, err := s.doRequest(ctx, http.MethodPost, "/v1/tools", spec)
	if err != nil {
		return nil, err
	}

	var out Tool
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTool replaces a tool's spec.
func (s *Session) UpdateTool(ctx context.Context, id string, spec ToolSpec) (*Tool, error) {
	resp, err := s.doRequest(ctx, http.MethodPut, "/v1/tools/"+id, spec)
	if err != nil {
		return nil, err
	}

	var out Tool
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTool removes a tool.
func (s *Session) DeleteTool(ctx context.Context, id string) error {
	resp, err := s.doRequest(ctx, http.MethodDelete, "/v1/tools/"+id, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
