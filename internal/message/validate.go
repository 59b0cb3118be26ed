package message

import "errors"

// ErrDanglingToolResult is returned by Validate when a tool-role message's
// ToolCallID does not match any tool_calls entry from a preceding
// assistant message.
var ErrDanglingToolResult = errors.New("message: tool-role message has no matching tool_calls entry")

// ErrMissingToolCallID is returned by Validate when a tool-role message
// carries no ToolCallID at all.
var ErrMissingToolCallID = errors.New("message: tool-role message missing tool_call_id")

// Validate checks the tool-role invariant from the data model: a message
// with Role == RoleTool must carry a ToolCallID that matches a tool_calls
// entry emitted by an earlier assistant message in the same list.
func Validate(messages []Message) error {
	known := make(map[string]bool)
	for _, m := range messages {
		if m.Role == RoleAssistant {
			for _, tc := range m.ToolCalls {
				known[tc.ID] = true
			}
		}
		if m.Role == RoleTool {
			if m.ToolCallID == "" {
				return ErrMissingToolCallID
			}
			if !known[m.ToolCallID] {
				return ErrDanglingToolResult
			}
		}
	}
	return nil
}
