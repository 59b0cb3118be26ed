package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Backend adapts a Manager to the tool package's narrow MCPBackend
// interface, so internal/tool never imports internal/mcp directly and the
// Agent Executor ↔ LLM Service ↔ MCP Client import cycle never forms.
type Backend struct {
	mgr *Manager
}

// NewBackend wraps mgr for use as a tool.MCPBackend.
func NewBackend(mgr *Manager) *Backend {
	return &Backend{mgr: mgr}
}

// callEnvelope is the JSON shape call_tool hands back to the model, per the
// MCP Client's tool-invocation contract: {success:true, result} on ordinary
// success; {success:false, error, error_code} on a JSON-RPC error, with
// unsupported:true when the server retroactively reveals it doesn't support
// tools/call; {success:false, tool_error:true, error} when the result's own
// isError flag is set.
type callEnvelope struct {
	Success     bool            `json:"success"`
	Result      *ToolCallResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Unsupported bool            `json:"unsupported,omitempty"`
	ToolError   bool            `json:"tool_error,omitempty"`
}

func (e callEnvelope) marshal() string {
	b, err := json.Marshal(e)
	if err != nil {
		return `{"success":false,"error":"failed to encode tool result"}`
	}
	return string(b)
}

// CallTool executes the MCP tool identified by "server:tool" and renders the
// call_tool envelope as a JSON string, matching the shape the model reads
// directly from the tool message's content. Never returns a Go error for an
// ordinary MCP-level failure — every failure mode the protocol defines is
// folded into the envelope's success/error/error_code/unsupported fields so
// the loop always gets a tool result to reason about, same as the caller
// never propagates exceptions out of a tool call.
func (b *Backend) CallTool(ctx context.Context, key string, args json.RawMessage) (string, bool, error) {
	serverID, toolName, ok := splitKey(key)
	if !ok {
		return callEnvelope{Error: fmt.Sprintf("malformed MCP tool key %q, want \"server:tool\"", key)}.marshal(), true, nil
	}

	client, exists := b.mgr.Client(serverID)
	if !exists {
		return callEnvelope{Error: fmt.Sprintf("server %q not connected", serverID)}.marshal(), true, nil
	}

	if !client.Supports("tools/call") {
		return callEnvelope{Error: fmt.Sprintf("server %q does not support tool calls", serverID), Unsupported: true}.marshal(), true, nil
	}

	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return callEnvelope{Error: "invalid tool arguments: " + err.Error()}.marshal(), true, nil
		}
	}

	result, err := client.CallTool(ctx, toolName, arguments)
	if err != nil {
		return errEnvelope(err).marshal(), true, nil
	}

	if result.IsError {
		return callEnvelope{Error: errorText(result), ToolError: true, Result: result}.marshal(), true, nil
	}

	return callEnvelope{Success: true, Result: result}.marshal(), false, nil
}

// errEnvelope classifies a Client.CallTool error: an RPCError carries the
// wire error code and flips Unsupported when the server rejected the method
// outright; anything else is a plain transport/encoding failure.
func errEnvelope(err error) callEnvelope {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return callEnvelope{Error: rpcErr.Message, ErrorCode: rpcErr.Code, Unsupported: rpcErr.Unsupported()}
	}
	var unsupported *ErrUnsupportedMethod
	if errors.As(err, &unsupported) {
		return callEnvelope{Error: err.Error(), ErrorCode: ErrCodeMethodNotFound, Unsupported: true}
	}
	return callEnvelope{Error: err.Error()}
}

// errorText extracts the concatenated text content from a tool result that
// reported isError, for use as the envelope's human-readable error field.
func errorText(result *ToolCallResult) string {
	var b strings.Builder
	for _, item := range result.Content {
		if item.Type != "text" || item.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(item.Text)
	}
	if b.Len() == 0 {
		return "tool execution error"
	}
	return b.String()
}

func splitKey(key string) (server, tool string, ok bool) {
	idx := strings.IndexByte(key, ':')
	if idx < 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}
