package models

import "encoding/json"

// ApprovalPolicy decides whether the remote agent asks before calling a tool.
type ApprovalPolicy string

const (
	ApprovalNever  ApprovalPolicy = "never"
	ApprovalAlways ApprovalPolicy = "always"
)

// Valid reports whether the platform accepts the policy.
func (p ApprovalPolicy) Valid() bool {
	return p == ApprovalNever || p == ApprovalAlways
}

// MCPTool is a declarative reference to an external MCP endpoint the agent may call.
// It mirrors one entry of the tools list in the agents config file.
type MCPTool struct {
	Type                string         `json:"type" yaml:"-"`
	ServerLabel         string         `json:"server_label" yaml:"server_label"`
	ServerURL           string         `json:"server_url" yaml:"server_url"`
	RequireApproval     ApprovalPolicy `json:"require_approval" yaml:"require_approval"`
	ProjectConnectionID string         `json:"project_connection_id,omitempty" yaml:"project_connection_id"`

	// Title and Purpose only feed the "Tools available" lines of the instructions.
	Title   string `json:"-" yaml:"title"`
	Purpose string `json:"-" yaml:"purpose"`
}

// PromptAgentDefinition is what the control plane stores for a prompt-based agent.
type PromptAgentDefinition struct {
	Kind         string    `json:"kind"`
	Model        string    `json:"model"`
	Instructions string    `json:"instructions"`
	Tools        []MCPTool `json:"tools,omitempty"`
}

// CreateAgentVersionRequest is the body of POST agents/{name}/versions.
type CreateAgentVersionRequest struct {
	Description string                `json:"description,omitempty"`
	Metadata    map[string]string     `json:"metadata,omitempty"`
	Definition  PromptAgentDefinition `json:"definition"`
}

// AgentVersion is the control plane's view of one created agent version.
type AgentVersion struct {
	Object      string          `json:"object"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	CreatedAt   int64           `json:"created_at,omitempty"`
	Definition  json.RawMessage `json:"definition,omitempty"`
}

// DeleteAgentVersionResponse is returned when a version is removed.
type DeleteAgentVersionResponse struct {
	Object  string `json:"object"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Deleted bool   `json:"deleted"`
}
