package http

import (
	"encoding/json"
	"net/http"

	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/httpx"
)

// ToolsHandler proxies the tool CRUD surface.
type ToolsHandler struct {
	*AgentsHandler
}

// HandleList handles GET /api/tools
//
//	@Summary	List tools
//	@Tags		Tools
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	agentsdk.ListToolsResponse
//	@Router		/api/tools [get].
func (h *ToolsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	out, err := h.Client.Bearer(auth.DownstreamToken).ListTools(r.Context())
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /api/tools/{id}
//
//	@Summary	Get tool
//	@Tags		Tools
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Tool ID"
//	@Success	200	{object}	agentsdk.Tool
//	@Router		/api/tools/{id} [get].
func (h *ToolsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	out, err := h.Client.Bearer(auth.DownstreamToken).GetTool(r.Context(), r.PathValue("id"))
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/tools
//
//	@Summary	Register tool
//	@Tags		Tools
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		agentsdk.ToolSpec	true	"Tool spec"
//	@Success	201		{object}	agentsdk.Tool
//	@Router		/api/tools [post].
func (h *ToolsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	var spec agentsdk.ToolSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON in request body")
		return
	}

	out, err := h.Client.Bearer(auth.DownstreamToken).CreateTool(r.Context(), spec)
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

// HandleUpdate handles PUT /api/tools/{id}
//
//	@Summary	Update tool
//	@Tags		Tools
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string				true	"Tool ID"
//	@Param		request	body		agentsdk.ToolSpec	true	"Tool spec"
//	@Success	200		{object}	agentsdk.Tool
//	@Router		/api/tools/{id} [put].
func (h *ToolsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	var spec agentsdk.ToolSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON in request body")
		return
	}

	out, err := h.Client.Bearer(auth.DownstreamToken).UpdateTool(r.Context(), r.PathValue("id"), spec)
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /api/tools/{id}
//
//	@Summary	Delete tool
//	@Tags		Tools
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Tool ID"
//	@Success	204	"Tool deleted"
//	@Router		/api/tools/{id} [delete].
func (h *ToolsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	if err := h.Client.Bearer(auth.DownstreamToken).DeleteTool(r.Context(), r.PathValue("id")); err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
