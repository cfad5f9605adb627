package agentsdk

import (
	"context"
	"net/http"
)

// ListAgents returns all agents visible to the session.
func (s *Session) ListAgents(ctx context.Context) (*ListAgentsResponse, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/v1/agents", nil)
	if err != nil {
		return nil, err
	}

	var out ListAgentsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAgent fetches one agent by ID.
func (s *Session) GetAgent(ctx context.Context, id string) (*Agent, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/v1/agents/"+id, nil)
	if err != nil {
		return nil, err
	}

	var out Agent
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAgent registers a new agent.
func (s *Session) CreateAgent(ctx context.Context, spec AgentSpec) (*Agent, error) {
	resp, err := s.doRequest(ctx, http.MethodPost, "/v1/agents", spec)
	if err != nil {
		return nil, err
	}

	var out Agent
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAgent replaces an agent's spec.
func (s *Session) UpdateAgent(ctx context.Context, id string, spec AgentSpec) (*Agent, error) {
	resp, err := s.doRequest(ctx, http.MethodPut, "/v1/agents/"+id, spec)
	if err != nil {
		return nil, err
	}

	var out Agent
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAgent removes an agent.
func (s *Session) DeleteAgent(ctx context.Context, id string) error {
	resp, err := s.doRequest(ctx, http.MethodDelete, "/v1/agents/"+id, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
