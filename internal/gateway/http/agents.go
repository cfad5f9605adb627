package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/broadline/agentgate/internal/gateway/exchange"
	"github.com/broadline/agentgate/internal/gateway/proxy"
	"github.com/broadline/agentgate/internal/gateway/session"
	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/httpx"
	"github.com/broadline/agentgate/pkg/slogx"
)

// AgentsHandler proxies the agent CRUD surface and the run stream.
type AgentsHandler struct {
	Client         *agentsdk.Client
	Exchanger      *exchange.Exchanger
	Audience       string
	AgentServerURL string
}

// invalidateOnUnauthorized drops the cached downstream token when the agent
// server 401s it. The next request re-exchanges instead of replaying a token
// the upstream has already rejected.
func (h *AgentsHandler) invalidateOnUnauthorized(auth *session.AuthContext, err error) {
	var apiErr *agentsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
		h.Exchanger.InvalidateUserToken(auth.UserID, h.Audience)
	}
}

// HandleList handles GET /api/agents
//
//	@Summary	List agents
//	@Tags		Agents
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	agentsdk.ListAgentsResponse
//	@Failure	401	{object}	object{error=string,error_description=string}
//	@Router		/api/agents [get].
func (h *AgentsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	out, err := h.Client.Bearer(auth.DownstreamToken).ListAgents(r.Context())
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /api/agents/{id}
//
//	@Summary	Get agent
//	@Tags		Agents
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Agent ID"
//	@Success	200	{object}	agentsdk.Agent
//	@Failure	404	{object}	object{error=string,error_description=string}
//	@Router		/api/agents/{id} [get].
func (h *AgentsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	out, err := h.Client.Bearer(auth.DownstreamToken).GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/agents
//
//	@Summary	Create agent
//	@Tags		Agents
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		agentsdk.AgentSpec	true	"Agent spec"
//	@Success	201		{object}	agentsdk.Agent
//	@Failure	400		{object}	object{error=string,error_description=string}
//	@Router		/api/agents [post].
func (h *AgentsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	var spec agentsdk.AgentSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON in request body")
		return
	}

	out, err := h.Client.Bearer(auth.DownstreamToken).CreateAgent(r.Context(), spec)
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

// HandleUpdate handles PUT /api/agents/{id}
//
//	@Summary	Update agent
//	@Tags		Agents
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string				true	"Agent ID"
//	@Param		request	body		agentsdk.AgentSpec	true	"Agent spec"
//	@Success	200		{object}	agentsdk.Agent
//	@Router		/api/agents/{id} [put].
func (h *AgentsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	var spec agentsdk.AgentSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON in request body")
		return
	}

	out, err := h.Client.Bearer(auth.DownstreamToken).UpdateAgent(r.Context(), r.PathValue("id"), spec)
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /api/agents/{id}
//
//	@Summary	Delete agent
//	@Tags		Agents
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Agent ID"
//	@Success	204	"Agent deleted"
//	@Router		/api/agents/{id} [delete].
func (h *AgentsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	if err := h.Client.Bearer(auth.DownstreamToken).DeleteAgent(r.Context(), r.PathValue("id")); err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStream handles GET /api/agents/{id}/stream
//
//	@Summary		Agent run stream
//	@Description	Relays the agent server's SSE run stream. Closing the connection cancels the running prompt upstream. An upstream failure mid-stream ends with a terminal stream_error event; the stream is never silently reopened.
//	@Tags			Agents
//	@Produce		text/event-stream
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Agent ID"
//	@Success		200	"SSE stream"
//	@Failure		401	{object}	object{error=string,error_description=string}
//	@Failure		502	{object}	object{error=string,error_description=string}
//	@Router			/api/agents/{id}/stream [get].
func (h *AgentsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auth := authFromCtx(ctx)
	log := slogx.FromContext(ctx)

	upstreamURL := h.AgentServerURL + "/v1/agents/" + r.PathValue("id") + "/stream"

	err := proxy.RelayStream(ctx, w, upstreamURL, auth.DownstreamToken)
	if err == nil {
		return
	}

	var statusErr *proxy.UpstreamStatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized {
		h.Exchanger.InvalidateUserToken(auth.UserID, h.Audience)
	}

	// Pre-stream failures still get a JSON error; mid-stream failures were
	// already reported in-band and only need logging here.
	if errors.As(err, &statusErr) || errors.Is(err, proxy.ErrUpstreamUnavailable) {
		writeAuthError(w, r, err)
		return
	}
	log.Error("agent stream ended with error", "agent_id", r.PathValue("id"), "error", err)
}
