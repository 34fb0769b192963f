package models

import "context"

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in the conversation history.
type Turn struct {
	Role Role
	Text string
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult carries one tool's structured payload back to the model.
type ToolResult struct {
	Name    string
	Payload map[string]any
}

// Reply is the provider-agnostic shape of a single model response:
// ordered text fragments plus zero or more tool-invocation requests.
// The agent loop never sees provider-native types.
type Reply struct {
	Texts []string
	Calls []ToolCall
}

// HasCalls reports whether the model requested any tool invocations.
func (r Reply) HasCalls() bool { return len(r.Calls) > 0 }

// ToolDecl declares one callable operation to the model.
type ToolDecl struct {
	Name        string
	Description string
	Schema      *Schema
}

// Schema is a JSON-schema-like parameter contract restricted to the
// primitive types every provider understands.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

// Chat is one model-facing exchange within a single user turn. Send opens
// the exchange with the new user message; SendToolResults continues it by
// returning a batch of tool payloads. Implementations keep the model's own
// response trace in their history between calls.
type Chat interface {
	Send(ctx context.Context, text string) (Reply, error)
	SendToolResults(ctx context.Context, results []ToolResult) (Reply, error)
}

// Model starts provider chats seeded with system instructions, prior
// conversation turns, and the tool declarations for this session.
type Model interface {
	StartChat(system string, history []Turn, tools []ToolDecl) Chat
}
