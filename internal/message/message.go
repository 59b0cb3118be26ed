// Package message defines the canonical request/response shapes shared by
// the provider adapters, the stream dispatcher, and the agent executor:
// messages, streaming chunks, and tool schemas. Nothing in this package
// talks to a provider or a tool backend; it is pure data plus the
// validation and flattening helpers the rest of the system builds on.
package message

import "encoding/json"

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies the kind of a multipart content Part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
	PartAudio    PartType = "audio"
)

// Part is one element of a message's multipart content. Text parts carry
// Text; image_url and audio parts carry URL, which may be a data: URI or an
// http(s) URI.
type Part struct {
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
	URL  string   `json:"url,omitempty"`
}

// ToolCall is a model's request to invoke a named tool with JSON arguments.
// Arguments may arrive as a JSON object or as a JSON-encoded string
// fragment accumulated across stream chunks; callers that need a parsed
// object should unmarshal Arguments themselves once it is complete.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is the canonical chat message shape passed to provider adapters
// and threaded through the agent executor's message list.
type Message struct {
	Role Role `json:"role"`

	// Content is set when the message is plain text. Parts is set when the
	// message carries multipart content (text plus image/audio). Exactly
	// one of the two is populated by well-formed callers; FlattenContent
	// handles messages where Parts is set but the destination only
	// accepts text.
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`

	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolResult is the output of one tool execution, keyed back to the
// ToolCall that produced it via ToolCallID.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolDefinition describes a callable tool: its name, a human-readable
// description, and a JSON-Schema describing its arguments. Names must be
// globally unique within a single request's tool list; tools sourced from
// an MCP server are namespaced "mcp_<server>_<tool>" before being placed in
// that list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// FlattenContent joins a message's text parts with a single space and
// drops any binary (image/audio) parts, for destinations that take text
// only: the Ollama adapter's messages, Gemini's system instruction, and
// OpenAI-wire messages that carry no image part. If the message has no
// Parts, Content is returned as-is.
func FlattenContent(m Message) string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	out := m.Content
	for _, p := range m.Parts {
		if p.Type != PartText || p.Text == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p.Text
	}
	return out
}
