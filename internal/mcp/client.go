package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// probeMethods is the fixed set of JSON-RPC methods a Client probes when a
// server does not answer system/methods.
var probeMethods = []string{
	"tools/list", "tools/call", "resources/list", "resources/read",
	"system/info", "prompts/list", "prompts/render",
}

// Client is an MCP client that connects to a single server.
type Client struct {
	config    *ServerConfig
	transport Transport
	logger    *slog.Logger

	// Cached capabilities
	tools     []*MCPTool
	resources []*MCPResource
	prompts   []*MCPPrompt
	mu        sync.RWMutex

	// supported is the per-session cache of which JSON-RPC methods the
	// server is known (or probed) to accept. A method recorded as false is
	// rejected locally, without a wire call; an absent method is assumed
	// supported (see Supports).
	supported map[string]bool

	// Server info
	serverInfo ServerInfo
}

// NewClient creates a new MCP client.
func NewClient(cfg *ServerConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:    cfg,
		transport: NewTransport(cfg),
		logger:    logger.With("mcp_server", cfg.ID),
		supported: make(map[string]bool),
	}
}

// Connect establishes the connection to the MCP server, negotiates
// capabilities, and discovers the supported-methods set.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities": map[string]any{
			"roots": map[string]any{
				"listChanged": true,
			},
		},
		"clientInfo": map[string]any{
			"name":    "agentbridge",
			"version": "1.0.0",
		},
	})
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	var initResult InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse initialize result: %w", err)
	}

	c.serverInfo = initResult.ServerInfo
	c.logger.Info("connected to MCP server",
		"name", c.serverInfo.Name,
		"version", c.serverInfo.Version,
		"protocol", initResult.ProtocolVersion)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("failed to send initialized notification", "error", err)
	}

	c.discoverCapabilities(ctx)

	if err := c.RefreshCapabilities(ctx); err != nil {
		c.logger.Warn("failed to refresh capabilities", "error", err)
	}

	return nil
}

// discoverCapabilities populates the supported-methods set: try
// system/methods first; if the server rejects it with method-not-found,
// fall back to probing each candidate method individually.
func (c *Client) discoverCapabilities(ctx context.Context) {
	result, err := c.transport.Call(ctx, "system/methods", nil)
	if err == nil {
		var methods struct {
			Methods []string `json:"methods"`
		}
		if json.Unmarshal(result, &methods) == nil && len(methods.Methods) > 0 {
			c.mu.Lock()
			for _, m := range methods.Methods {
				c.supported[m] = true
			}
			c.mu.Unlock()
			c.logger.Debug("discovered methods via system/methods", "count", len(methods.Methods))
			return
		}
	}

	var rpcErr *RPCError
	if err != nil && !errors.As(err, &rpcErr) {
		// Transport-level failure, not a protocol rejection; nothing more
		// we can learn here, leave the supported set empty.
		return
	}
	if err != nil && !rpcErr.Unsupported() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, method := range probeMethods {
		_, perr := c.transport.Call(ctx, method, probeParams(method))
		var probeRPCErr *RPCError
		unsupported := errors.As(perr, &probeRPCErr) && probeRPCErr.Unsupported()
		c.supported[method] = !unsupported
	}
	c.logger.Debug("discovered methods via probing", "supported", c.supported)
}

// probeParams supplies the minimal params a probe call needs to reach
// method dispatch on the server without tripping over missing-arg
// validation before the method-not-found check would fire.
func probeParams(method string) any {
	switch method {
	case "tools/call":
		return CallToolParams{Name: "__agentbridge_probe__"}
	case "resources/read":
		return map[string]any{"uri": ""}
	default:
		return nil
	}
}

// Supports reports whether method is known-supported. A method never
// probed is assumed supported (conservative default so correctly
// functioning methods are never silently blocked).
func (c *Client) Supports(method string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	supported, known := c.supported[method]
	return !known || supported
}

// call invokes method via the transport, short-circuiting with a local
// error if the session already knows the method is unsupported.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !c.Supports(method) {
		return nil, &ErrUnsupportedMethod{Method: method}
	}
	result, err := c.transport.Call(ctx, method, params)
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Unsupported() {
		c.mu.Lock()
		c.supported[method] = false
		c.mu.Unlock()
	}
	return result, err
}

// Close closes the connection to the MCP server.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Config returns the server configuration.
func (c *Client) Config() *ServerConfig {
	return c.config
}

// ServerInfo returns information about the connected server.
func (c *Client) ServerInfo() ServerInfo {
	return c.serverInfo
}

// Connected returns whether the client is connected.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// RefreshCapabilities refreshes the cached tools, resources, and prompts.
func (c *Client) RefreshCapabilities(ctx context.Context) error {
	if result, err := c.call(ctx, "tools/list", nil); err == nil {
		var resp ListToolsResult
		if json.Unmarshal(result, &resp) == nil {
			c.mu.Lock()
			c.tools = resp.Tools
			c.mu.Unlock()
			c.logger.Debug("refreshed tools", "count", len(resp.Tools))
		}
	}

	if result, err := c.call(ctx, "resources/list", nil); err == nil {
		var resp ListResourcesResult
		if json.Unmarshal(result, &resp) == nil {
			c.mu.Lock()
			c.resources = resp.Resources
			c.mu.Unlock()
			c.logger.Debug("refreshed resources", "count", len(resp.Resources))
		}
	}

	if result, err := c.call(ctx, "prompts/list", nil); err == nil {
		var resp ListPromptsResult
		if json.Unmarshal(result, &resp) == nil {
			c.mu.Lock()
			c.prompts = resp.Prompts
			c.mu.Unlock()
			c.logger.Debug("refreshed prompts", "count", len(resp.Prompts))
		}
	}

	return nil
}

// Tools returns the cached tools.
func (c *Client) Tools() []*MCPTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// Resources returns the cached resources.
func (c *Client) Resources() []*MCPResource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resources
}

// Prompts returns the cached prompts.
func (c *Client) Prompts() []*MCPPrompt {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prompts
}

// CallTool calls a tool on the MCP server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	params := CallToolParams{Name: name}

	if arguments != nil {
		argsJSON, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
		params.Arguments = argsJSON
	}

	result, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}

	return &callResult, nil
}

// ReadResource reads a resource from the MCP server.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]*ResourceContent, error) {
	result, err := c.call(ctx, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return nil, err
	}

	var readResult ReadResourceResult
	if err := json.Unmarshal(result, &readResult); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}

	return readResult.Contents, nil
}

// GetPrompt gets a prompt from the MCP server.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*GetPromptResult, error) {
	result, err := c.call(ctx, "prompts/get", map[string]any{
		"name":      name,
		"arguments": arguments,
	})
	if err != nil {
		return nil, err
	}

	var promptResult GetPromptResult
	if err := json.Unmarshal(result, &promptResult); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}

	return &promptResult, nil
}

// Events returns the notification channel.
func (c *Client) Events() <-chan *JSONRPCNotification {
	return c.transport.Events()
}
