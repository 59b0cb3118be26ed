package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/agentbridge/agentbridge/internal/message"
)

// ExecutorConfig configures per-call timeouts for the Executor.
type ExecutorConfig struct {
	// PerToolTimeout bounds a single tool invocation (built-in or MCP).
	// Zero means no timeout beyond the caller's context.
	PerToolTimeout time.Duration
}

// Executor dispatches a list of ToolCall in order, producing one
// ToolResult per call. Per the concurrency model, the Tool Executor awaits
// each tool sequentially within one request — it is not the
// internal/agent.Executor's job to parallelize tool calls, so there is
// exactly one execution path here.
type Executor struct {
	registry *Registry
	mcp      MCPBackend
	cfg      ExecutorConfig
	log      *slog.Logger
}

func NewExecutor(registry *Registry, mcp MCPBackend, cfg ExecutorConfig, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{registry: registry, mcp: mcp, cfg: cfg, log: log.With("component", "tool.Executor")}
}

// ExecuteAll runs calls in order and returns one ToolResult per call,
// storing the image in the images side-channel slot if any call was
// generateImage. It never returns an error for an individual tool
// failure — per the propagation policy, the Tool Executor converts
// exceptions into tool results so the caller's loop can continue.
func (e *Executor) ExecuteAll(ctx context.Context, calls []message.ToolCall, images *ImageSlot) []message.ToolResult {
	results := make([]message.ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.execute(ctx, call, images))
	}
	return results
}

func (e *Executor) execute(ctx context.Context, call message.ToolCall, images *ImageSlot) (result message.ToolResult) {
	result.ToolCallID = call.ID

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tool handler panicked", "tool", call.Name, "panic", r, "stack", string(debug.Stack()))
			result.Content = errorContent(fmt.Sprintf("panic: %v", r))
			result.IsError = true
		}
	}()

	callCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.PerToolTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.PerToolTimeout)
		defer cancel()
	}

	switch {
	case call.Name == "generateImage":
		result.Content = e.executeGenerateImage(callCtx, call, images)
	case strings.HasPrefix(call.Name, "mcp_"):
		result.Content, result.IsError = e.executeMCP(callCtx, call)
	default:
		result.Content, result.IsError = e.executeBuiltin(callCtx, call)
	}
	return result
}

func (e *Executor) executeBuiltin(ctx context.Context, call message.ToolCall) (string, bool) {
	h, ok := e.registry.Get(call.Name)
	if !ok {
		return errorContent(fmt.Sprintf("unknown tool %q", call.Name)), true
	}
	if err := validateArgs(h.Schema(), call.Arguments); err != nil {
		return errorContent("missing or invalid arguments: " + err.Error()), true
	}
	out, err := h.Execute(ctx, call.Arguments)
	if err != nil {
		e.log.Warn("tool handler failed", "tool", call.Name, "error", err)
		return errorContent(err.Error()), true
	}
	return out, false
}

// executeMCP routes mcp_<server>_<tool> calls to the MCP Client: strip the
// prefix, restore the ":" separator between server and tool at the first
// remaining "_" only, so tool names may contain underscores but a server
// name that contains one is split inside it and does not route. Every failure
// path here is a call_tool()-level failure, so it is reported in the same
// {success:false, error, ...} envelope the MCP Client itself returns for a
// wire-level failure, not the bare {error:...} shape built-in tools use.
func (e *Executor) executeMCP(ctx context.Context, call message.ToolCall) (string, bool) {
	if e.mcp == nil {
		return mcpErrorContent("MCP is not enabled"), true
	}
	rest := strings.TrimPrefix(call.Name, "mcp_")
	idx := strings.IndexByte(rest, '_')
	if idx < 0 {
		return mcpErrorContent(fmt.Sprintf("malformed MCP tool name %q", call.Name)), true
	}
	key := rest[:idx] + ":" + rest[idx+1:]

	out, isErr, err := e.mcp.CallTool(ctx, key, call.Arguments)
	if err != nil {
		return mcpErrorContent(err.Error()), true
	}
	return out, isErr
}

func (e *Executor) executeGenerateImage(ctx context.Context, call message.ToolCall, images *ImageSlot) string {
	h, ok := e.registry.Get("generateImage")
	if !ok {
		return errorContent("image generation is not enabled")
	}
	if err := validateArgs(h.Schema(), call.Arguments); err != nil {
		return errorContent("missing or invalid arguments: " + err.Error())
	}
	out, err := h.Execute(ctx, call.Arguments)
	if err != nil {
		return errorContent(err.Error())
	}

	var payload struct {
		DataURI string `json:"data_uri"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err == nil && payload.DataURI != "" && images != nil {
		images.Set(payload.DataURI)
	}
	// The base64 payload never ships back through the model's context
	// window; only a success marker does.
	return `{"success":true}`
}

func errorContent(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

// mcpErrorContent builds a call_tool-shaped {success:false, error} envelope
// for MCP routing failures that never reach the MCP Client itself (MCP
// disabled, malformed tool name) — matching the envelope the Client returns
// for its own wire-level failures, rather than the plain {error:...} shape
// built-in tools use.
func mcpErrorContent(msg string) string {
	b, _ := json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{Error: msg})
	return string(b)
}
