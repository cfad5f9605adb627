package http

import (
	"encoding/json"
	"net/http"

	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/httpx"
)

// WorkflowsHandler proxies the workflow CRUD surface.
type WorkflowsHandler struct {
	*AgentsHandler
}

// HandleList handles GET /api/workflows
//
//	@Summary	List workflows
//	@Tags		Workflows
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	agentsdk.ListWorkflowsResponse
//	@Router		/api/workflows [get].
func (h *WorkflowsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	out, err := h.Client.Bearer(auth.DownstreamToken).ListWorkflows(r.Context())
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /api/workflows/{id}
//
//	@Summary	Get workflow
//	@Tags		Workflows
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Workflow ID"
//	@Success	200	{object}	agentsdk.Workflow
//	@Router		/api/workflows/{id} [get].
func (h *WorkflowsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	out, err := h.Client.Bearer(auth.DownstreamToken).GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleCreate handles POST /api/workflows
//
//	@Summary	Create workflow
//	@Tags		Workflows
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		agentsdk.WorkflowSpec	true	"Workflow spec"
//	@Success	201		{object}	agentsdk.Workflow
//	@Router		/api/workflows [post].
func (h *WorkflowsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	var spec agentsdk.WorkflowSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON in request body")
		return
	}

	out, err := h.Client.Bearer(auth.DownstreamToken).CreateWorkflow(r.Context(), spec)
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

// HandleUpdate handles PUT /api/workflows/{id}
//
//	@Summary	Update workflow
//	@Tags		Workflows
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string					true	"Workflow ID"
//	@Param		request	body		agentsdk.WorkflowSpec	true	"Workflow spec"
//	@Success	200		{object}	agentsdk.Workflow
//	@Router		/api/workflows/{id} [put].
func (h *WorkflowsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	var spec agentsdk.WorkflowSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON in request body")
		return
	}

	out, err := h.Client.Bearer(auth.DownstreamToken).UpdateWorkflow(r.Context(), r.PathValue("id"), spec)
	if err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleDelete handles DELETE /api/workflows/{id}
//
//	@Summary	Delete workflow
//	@Tags		Workflows
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Workflow ID"
//	@Success	204	"Workflow deleted"
//	@Router		/api/workflows/{id} [delete].
func (h *WorkflowsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	auth := authFromCtx(r.Context())

	if err := h.Client.Bearer(auth.DownstreamToken).DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
		h.invalidateOnUnauthorized(auth, err)
		writeAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
