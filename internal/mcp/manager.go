package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	serverConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agentbridge_mcp_server_connected",
		Help: "1 if the MCP server is currently connected, 0 otherwise.",
	}, []string{"server"})

	connectAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentbridge_mcp_connect_attempts_total",
		Help: "MCP server connection attempts, labeled by outcome.",
	}, []string{"server", "outcome"})
)

func init() {
	prometheus.MustRegister(serverConnected, connectAttempts)
}

// Manager owns the lifecycle of every configured MCP server connection: it
// connects auto-start servers at boot, supervises them for drops while the
// process runs, and aggregates their tools/resources/prompts for the Agent
// Executor and HTTP layer to query without knowing about individual servers.
type Manager struct {
	config  *Config
	logger  *slog.Logger
	clients map[string]*Client
	mu      sync.RWMutex

	reconnectBaseDelay time.Duration
	reconnectMaxDelay  time.Duration

	failuresMu sync.Mutex
	failures   map[string]int
}

// Config holds the MCP manager configuration.
type Config struct {
	Enabled bool            `yaml:"enabled"`
	Servers []*ServerConfig `yaml:"servers"`
}

// NewManager creates a new MCP manager.
func NewManager(cfg *Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		config:             cfg,
		logger:             logger.With("component", "mcp"),
		clients:            make(map[string]*Client),
		reconnectBaseDelay: 2 * time.Second,
		reconnectMaxDelay:  time.Minute,
		failures:           make(map[string]int),
	}
}

// Start connects to all configured auto-start MCP servers concurrently, so
// one slow or unreachable server never delays the rest. It returns once every
// attempt has settled; per-server failures are logged, not returned, since a
// partial connect set still lets the agent run with the servers that came up.
func (m *Manager) Start(ctx context.Context) error {
	if m.config == nil || !m.config.Enabled {
		m.logger.Debug("MCP disabled")
		return nil
	}

	var wg sync.WaitGroup
	for _, serverCfg := range m.config.Servers {
		if !serverCfg.AutoStart {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := m.Connect(ctx, id); err != nil {
				m.logger.Error("failed to connect to MCP server", "server", id, "error", err)
			}
		}(serverCfg.ID)
	}
	wg.Wait()

	return nil
}

// Supervise runs until ctx is cancelled, periodically reconnecting any
// auto-start server that is configured but not currently connected. Each
// server's reconnect attempts back off independently (doubling from
// reconnectBaseDelay up to reconnectMaxDelay) so a server that is down for
// an extended period doesn't get redialed on every tick.
func (m *Manager) Supervise(ctx context.Context, interval time.Duration) {
	if m.config == nil || !m.config.Enabled {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	nextAttempt := make(map[string]time.Time)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, serverCfg := range m.config.Servers {
				if !serverCfg.AutoStart {
					continue
				}
				if m.isConnected(serverCfg.ID) {
					m.resetFailures(serverCfg.ID)
					delete(nextAttempt, serverCfg.ID)
					continue
				}
				if at, scheduled := nextAttempt[serverCfg.ID]; scheduled && now.Before(at) {
					continue
				}

				if err := m.Connect(ctx, serverCfg.ID); err != nil {
					delay := m.backoffFor(serverCfg.ID)
					nextAttempt[serverCfg.ID] = now.Add(delay)
					m.logger.Warn("mcp reconnect attempt failed", "server", serverCfg.ID, "error", err, "retry_in", delay)
				} else {
					m.resetFailures(serverCfg.ID)
					delete(nextAttempt, serverCfg.ID)
					m.logger.Info("mcp server reconnected", "server", serverCfg.ID)
				}
			}
		}
	}
}

func (m *Manager) backoffFor(serverID string) time.Duration {
	m.failuresMu.Lock()
	m.failures[serverID]++
	streak := m.failures[serverID]
	m.failuresMu.Unlock()

	delay := m.reconnectBaseDelay << uint(streak-1)
	if delay <= 0 || delay > m.reconnectMaxDelay {
		delay = m.reconnectMaxDelay
	}
	return delay
}

func (m *Manager) resetFailures(serverID string) {
	m.failuresMu.Lock()
	delete(m.failures, serverID)
	m.failuresMu.Unlock()
}

func (m *Manager) isConnected(serverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, exists := m.clients[serverID]
	return exists && client.Connected()
}

// Stop disconnects from all MCP servers.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, client := range m.clients {
		if err := client.Close(); err != nil {
			m.logger.Error("failed to close MCP client", "server", id, "error", err)
		}
		serverConnected.WithLabelValues(id).Set(0)
		delete(m.clients, id)
	}

	return nil
}

// Connect connects to a specific MCP server by ID.
func (m *Manager) Connect(ctx context.Context, serverID string) error {
	var serverCfg *ServerConfig
	for _, cfg := range m.config.Servers {
		if cfg.ID == serverID {
			serverCfg = cfg
			break
		}
	}

	if serverCfg == nil {
		return fmt.Errorf("server %q not found in config", serverID)
	}

	m.mu.RLock()
	if existing, exists := m.clients[serverID]; exists && existing.Connected() {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	client := NewClient(serverCfg, m.logger)
	if err := client.Connect(ctx); err != nil {
		connectAttempts.WithLabelValues(serverID, "failure").Inc()
		return err
	}

	m.mu.Lock()
	m.clients[serverID] = client
	m.mu.Unlock()

	connectAttempts.WithLabelValues(serverID, "success").Inc()
	serverConnected.WithLabelValues(serverID).Set(1)

	m.logger.Info("connected to MCP server", "server", serverID, "name", client.ServerInfo().Name)

	return nil
}

// Disconnect disconnects from a specific MCP server.
func (m *Manager) Disconnect(serverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, exists := m.clients[serverID]
	if !exists {
		return nil
	}

	if err := client.Close(); err != nil {
		return err
	}

	delete(m.clients, serverID)
	serverConnected.WithLabelValues(serverID).Set(0)
	m.logger.Info("disconnected from MCP server", "server", serverID)

	return nil
}

// Client returns a client for a specific server.
func (m *Manager) Client(serverID string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, exists := m.clients[serverID]
	return client, exists
}

// Clients returns all connected clients.
func (m *Manager) Clients() map[string]*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*Client, len(m.clients))
	for id, client := range m.clients {
		result[id] = client
	}
	return result
}

// AllTools returns all tools from all connected servers.
func (m *Manager) AllTools() map[string][]*MCPTool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]*MCPTool)
	for id, client := range m.clients {
		if tools := client.Tools(); len(tools) > 0 {
			result[id] = tools
		}
	}
	return result
}

// AllResources returns all resources from all connected servers.
func (m *Manager) AllResources() map[string][]*MCPResource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]*MCPResource)
	for id, client := range m.clients {
		if resources := client.Resources(); len(resources) > 0 {
			result[id] = resources
		}
	}
	return result
}

// AllPrompts returns all prompts from all connected servers.
func (m *Manager) AllPrompts() map[string][]*MCPPrompt {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]*MCPPrompt)
	for id, client := range m.clients {
		if prompts := client.Prompts(); len(prompts) > 0 {
			result[id] = prompts
		}
	}
	return result
}

// CallTool calls a tool on a specific server.
func (m *Manager) CallTool(ctx context.Context, serverID string, toolName string, arguments map[string]any) (*ToolCallResult, error) {
	client, exists := m.Client(serverID)
	if !exists {
		return nil, fmt.Errorf("server %q not connected", serverID)
	}

	return client.CallTool(ctx, toolName, arguments)
}

// FindTool finds a tool by name across all servers.
// Returns the server ID and tool definition, or empty string if not found.
func (m *Manager) FindTool(name string) (serverID string, tool *MCPTool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id, client := range m.clients {
		for _, t := range client.Tools() {
			if t.Name == name {
				return id, t
			}
		}
	}
	return "", nil
}

// ReadResource reads a resource from a specific server.
func (m *Manager) ReadResource(ctx context.Context, serverID string, uri string) ([]*ResourceContent, error) {
	client, exists := m.Client(serverID)
	if !exists {
		return nil, fmt.Errorf("server %q not connected", serverID)
	}

	return client.ReadResource(ctx, uri)
}

// GetPrompt gets a prompt from a specific server.
func (m *Manager) GetPrompt(ctx context.Context, serverID string, name string, arguments map[string]string) (*GetPromptResult, error) {
	client, exists := m.Client(serverID)
	if !exists {
		return nil, fmt.Errorf("server %q not connected", serverID)
	}

	return client.GetPrompt(ctx, name, arguments)
}

// ToolSchema represents the JSON schema for a tool, used by LLMs.
type ToolSchema struct {
	ServerID    string          `json:"server_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolSchemas returns tool schemas suitable for LLM tool definitions.
func (m *Manager) ToolSchemas() []ToolSchema {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var schemas []ToolSchema
	for id, client := range m.clients {
		for _, tool := range client.Tools() {
			schemas = append(schemas, ToolSchema{
				ServerID:    id,
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			})
		}
	}
	return schemas
}

// ServerStatus represents the status of an MCP server.
type ServerStatus struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Connected bool       `json:"connected"`
	Server    ServerInfo `json:"server"`
	Tools     int        `json:"tools"`
	Resources int        `json:"resources"`
	Prompts   int        `json:"prompts"`
}

// Status returns the status of all configured servers.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var statuses []ServerStatus
	for _, cfg := range m.config.Servers {
		status := ServerStatus{
			ID:   cfg.ID,
			Name: cfg.Name,
		}

		if client, exists := m.clients[cfg.ID]; exists {
			status.Connected = client.Connected()
			status.Server = client.ServerInfo()
			status.Tools = len(client.Tools())
			status.Resources = len(client.Resources())
			status.Prompts = len(client.Prompts())
		}

		statuses = append(statuses, status)
	}

	return statuses
}
