package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/httpx"
)

// ClientsHandler proxies API client registration on the agent server.
type ClientsHandler struct {
	*AgentsHandler
}

// HandleList handles GET /api/clients
//
//	@Summary	List API clients
//	@Tags		Clients
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	agentsdk.ListClientAppsResponse
//	@Router		/api/clients [get].
func (h *ClientsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	out, err := h.Client.Bearer(auth.DownstreamToken).ListClientApps(r.Context())
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/clients
//
//	@Summary		Register API client
//	@Description	Registers a new API client on the agent server. The response contains the client secret exactly once.
//	@Tags			Clients
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		agentsdk.ClientAppSpec	true	"Client spec"
//	@Success		201		{object}	agentsdk.CreateClientAppResponse
//	@Router			/api/clients [post].
func (h *ClientsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	var spec agentsdk.ClientAppSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON in request body")
		return
	}
	if strings.TrimSpace(spec.Name) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "client name is required")
		return
	}

	out, err := h.Client.Bearer(auth.DownstreamToken).CreateClientApp(r.Context(), spec)
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

// HandleDelete handles DELETE /api/clients/{id}
//
//	@Summary	Delete API client
//	@Tags		Clients
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Client ID"
//	@Success	204	"Client deleted"
//	@Router		/api/clients/{id} [delete].
func (h *ClientsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	if err := h.Client.Bearer(auth.DownstreamToken).DeleteClientApp(r.Context(), r.PathValue("id")); err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
