package http

import (
	"errors"
	"net/http"

	"github.com/broadline/agentgate/internal/gateway/exchange"
	"github.com/broadline/agentgate/internal/gateway/proxy"
	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/httpx"
	"github.com/broadline/agentgate/pkg/slogx"
)

// IngestHandler proxies document operations to the ingest service. List and
// delete go through the typed client; uploads are multipart with
// service-defined responses, so they stay a raw byte forward.
type IngestHandler struct {
	Documents *agentsdk.Client
	Forwarder *proxy.Forwarder
	Exchanger *exchange.Exchanger
	Audience  string
}

func (h *IngestHandler) invalidateOnUnauthorized(userID string, err error) {
	var apiErr *agentsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		h.Exchanger.InvalidateUserToken(userID, h.Audience)
	}
}

// HandleList handles GET /api/ingest/documents
//
//	@Summary	List ingested documents
//	@Tags		Ingest
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	agentsdk.ListDocumentsResponse
//	@Failure	401	{object}	object{error=string,error_description=string}
//	@Router		/api/ingest/documents [get].
func (h *IngestHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	out, err := h.Documents.Bearer(auth.DownstreamToken).ListDocuments(r.Context())
	if err != nil {
		h.invalidateOnUnauthorized(auth.UserID, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleUpload handles POST /api/ingest/documents
//
//	@Summary		Upload a document
//	@Description	Forwards the multipart upload body to the ingest service verbatim with the caller's downstream token.
//	@Tags			Ingest
//	@Security		BearerAuth
//	@Success		202
//	@Failure		401	{object}	object{error=string,error_description=string}
//	@Router			/api/ingest/documents [post].
func (h *IngestHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	status, err := h.Forwarder.Forward(w, r, "/v1/documents", auth.DownstreamToken)
	if status == http.StatusUnauthorized {
		h.Exchanger.InvalidateUserToken(auth.UserID, h.Audience)
	}
	if errors.Is(err, proxy.ErrUpstreamUnavailable) {
		// Nothing has been written yet on a transport failure.
		writeAuthError(w, r, err)
		return
	}
	if err != nil {
		slogx.FromContext(r.Context()).Error("ingest forward failed mid-response", "error", err)
	}
}

// HandleDelete handles DELETE /api/ingest/documents/{id}
//
//	@Summary	Delete a document
//	@Tags		Ingest
//	@Security	BearerAuth
//	@Success	204
//	@Failure	401	{object}	object{error=string,error_description=string}
//	@Router		/api/ingest/documents/{id} [delete].
func (h *IngestHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	if err := h.Documents.Bearer(auth.DownstreamToken).DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		h.invalidateOnUnauthorized(auth.UserID, err)
		writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
