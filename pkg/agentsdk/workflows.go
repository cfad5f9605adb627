package agentsdk

import (
	"context"
	"net/http"
)

// ListWorkflows returns all workflows.
func (s *Session) ListWorkflows(ctx context.Context) (*ListWorkflowsResponse, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/v1/workflows", nil)
	if err != nil {
		return nil, err
	}

	var out ListWorkflowsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWorkflow fetches one workflow by ID.
func (s *Session) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/v1/workflows/"+id, nil)
	if err != nil {
		return nil, err
	}

	var out Workflow
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWorkflow registers a new workflow.
func (s *Session) CreateWorkflow(ctx context.Context, spec WorkflowSpec) (*Workflow, error) {
	resp, err := s.doRequest(ctx, http.MethodPost, "/v1/workflows", spec)
	if err != nil {
		return nil, err
	}

	var out Workflow
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateWorkflow replaces a workflow's spec.
func (s *Session) UpdateWorkflow(ctx context.Context, id string, spec WorkflowSpec) (*Workflow, error) {
	resp, err := s.doRequest(ctx, http.MethodPut, "/v1/workflows/"+id, spec)
	if err != nil {
		return nil, err
	}

	var out Workflow
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWorkflow removes a workflow.
func (s *Session) DeleteWorkflow(ctx context.Context, id string) error {
	resp, err := s.doRequest(ctx, http.MethodDelete, "/v1/workflows/"+id, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
