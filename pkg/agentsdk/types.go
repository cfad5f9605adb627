package agentsdk

import "time"

// Agent is a configured assistant on the agent server.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Model        string    `json:"model"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Tools        []string  `json:"tools,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AgentSpec is the writable subset of an Agent.
type AgentSpec struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Model        string   `json:"model"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Tools        []string `json:"tools,omitempty"`
}

// ListAgentsResponse wraps the agent collection.
type ListAgentsResponse struct {
	Agents []Agent `json:"agents"`
}

// Workflow chains agents and tools into a multi-step run.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []WorkflowStep `json:"steps"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// WorkflowStep is one stage of a workflow.
type WorkflowStep struct {
	Name    string `json:"name"`
	AgentID string `json:"agent_id,omitempty"`
	ToolID  string `json:"tool_id,omitempty"`
}

// WorkflowSpec is the writable subset of a Workflow.
type WorkflowSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Steps       []WorkflowStep `json:"steps"`
}

// ListWorkflowsResponse wraps the workflow collection.
type ListWorkflowsResponse struct {
	Workflows []Workflow `json:"workflows"`
}

// Tool is a callable capability agents can be granted.
type Tool struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ToolSpec is the writable subset of a Tool.
type ToolSpec struct {
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// ListToolsResponse wraps the tool collection.
type ListToolsResponse struct {
	Tools []Tool `json:"tools"`
}

// ClientApp is a registered API client of the agent server.
type ClientApp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Scopes    []string  `json:"scopes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientAppSpec is the writable subset of a ClientApp.
type ClientAppSpec struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes,omitempty"`
}

// CreateClientAppResponse carries the one-time secret for a new client.
type CreateClientAppResponse struct {
	Client ClientApp `json:"client"`
	Secret string    `json:"secret"`
}

// ListClientAppsResponse wraps the client collection.
type ListClientAppsResponse struct {
	Clients []ClientApp `json:"clients"`
}

// Document is an ingested knowledge-base document.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	Status      string    `json:"status"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// ListDocumentsResponse wraps the document collection.
type ListDocumentsResponse struct {
	Documents []Document `json:"documents"`
}
