package agentsdk

import (
	"context"
	"net/http"
)

// ListDocuments returns all ingested documents.
func (s *Session) ListDocuments(ctx context.Context) (*ListDocumentsResponse, error) {
	resp, err := s.doRequest(ctx, http.MethodGet, "/v1/documents", nil)
	if err != nil {
		return nil, err
	}

	var out ListDocumentsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteDocument removes a document and its derived index entries.
func (s *Session) DeleteDocument(ctx context.Context, id string) error {
	resp, err := s.doRequest(ctx, http.MethodDelete, "/v1/documents/"+id, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
