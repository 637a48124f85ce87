package models

// Conversation is a server-side conversation that keeps the turns of a smoke test.
type Conversation struct {
	ID        string `json:"id"`
	Object    string `json:"object,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// AgentReference routes a responses request to a provisioned agent instead of a raw model.
type AgentReference struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewAgentReference points at the latest version of the named agent.
func NewAgentReference(name string) AgentReference {
	return AgentReference{Name: name, Type: "agent_reference"}
}

// Reply is what a smoke test hands back: the conversation it ran in and the agent's text.
type Reply struct {
	ConversationID string
	ResponseID     string
	OutputText     string
}
