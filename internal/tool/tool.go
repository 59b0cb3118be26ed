package tool

import (
	"context"
	"encoding/json"
)

// Handler is a single built-in tool: a fixed JSON-Schema plus a narrow
// execute function. Implementations are thin, few-line workers — the
// "hard problem" this system solves is routing and lifecycle, not the
// leaf tools' own logic.
type Handler interface {
	Name() string
	Description() string
	// Schema returns the tool's JSON-Schema describing its arguments.
	Schema() map[string]any
	// Execute runs the tool against already-schema-validated arguments and
	// returns the JSON-encoded success payload (e.g. `{"success":true,...}`).
	// A returned error is converted by the Executor into a {"error":...}
	// result; Execute must never panic past the Executor's recover.
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// MCPBackend is the narrow interface the Executor depends on to route
// "mcp_<server>_<tool>" calls, injected at construction rather than
// importing the mcp package directly — breaking the cyclic dependency the
// design notes call out between the agent executor, tool executor, and MCP
// client.
type MCPBackend interface {
	CallTool(ctx context.Context, key string, args json.RawMessage) (result string, isError bool, err error)
}

// ImageSlot is the per-request side-channel used by generateImage: the
// data-URI payload is stored here, observable by the HTTP caller, and never
// re-injected into the model's context window. It must be constructed once
// per request — never shared across requests.
type ImageSlot struct {
	DataURI string
	set     bool
}

func (s *ImageSlot) Set(dataURI string) {
	s.DataURI = dataURI
	s.set = true
}

func (s *ImageSlot) IsSet() bool { return s.set }
