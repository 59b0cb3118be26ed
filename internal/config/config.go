// Package config loads and validates the server's startup configuration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the agent orchestration server.
type Config struct {
	Version   int                      `yaml:"version"`
	Server    ServerConfig             `yaml:"server"`
	Providers map[string]ProviderEntry `yaml:"providers"`
	Agent     AgentConfig              `yaml:"agent"`
	MCP       MCPFileConfig            `yaml:"mcp"`
	Quota     QuotaConfig              `yaml:"quota"`
	Logging   LoggingConfig            `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// ProviderEntry configures one of the five provider adapters.
type ProviderEntry struct {
	Kind    string `yaml:"kind"` // github | openrouter | ollama | nvidia | gemini
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`

	// ToolUnsupportedModels is passed to the GitHub adapter as its
	// NoToolModels set; the other adapter kinds ignore it.
	// MultimodalUnsupportedModels is parsed but no adapter reads it, so no
	// model has multimodal content parts stripped because of it.
	ToolUnsupportedModels       []string `yaml:"tool_unsupported_models"`
	MultimodalUnsupportedModels []string `yaml:"multimodal_unsupported_models"`
}

// AgentConfig holds defaults for the Agent Executor's execution loop.
type AgentConfig struct {
	MaxSteps            int               `yaml:"max_steps"`
	ReflectionThreshold int               `yaml:"reflection_threshold"`
	DefaultProvider     string            `yaml:"default_provider"`
	SystemPrompts       map[string]string `yaml:"system_prompts"` // keyed by mode-selection matrix entry
	RateLimit           RateLimitConfig   `yaml:"rate_limit"`
}

// RateLimitConfig sizes the single token bucket internal/httpapi shares
// across all inbound requests.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// MCPFileConfig mirrors the `mcpServers`/`settings` JSON shape spec §6
// describes for the standalone MCP config file, embedded here so the whole
// server can start from one YAML document.
type MCPFileConfig struct {
	Servers  map[string]MCPServerEntry `yaml:"mcpServers"`
	Settings MCPSettings               `yaml:"settings"`
}

// MCPServerEntry configures one MCP server launch.
type MCPServerEntry struct {
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	Transport   string            `yaml:"transport"`
	Enabled     bool              `yaml:"enabled"`
	Timeout     int               `yaml:"timeout"`
	Description string            `yaml:"description"`
}

// MCPSettings holds MCP-wide defaults.
type MCPSettings struct {
	AutoInit       bool `yaml:"auto_init"`
	DefaultTimeout int  `yaml:"default_timeout"`
	MaxConnections int  `yaml:"max_connections"`
}

// QuotaConfig bounds the Quota Gate's per-(user, model, day) call count.
type QuotaConfig struct {
	DailyCallLimit int `yaml:"daily_call_limit"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads, expands, and validates a YAML config file at path, resolving
// any $include directives relative to its directory.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}

	if cfg.Agent.MaxSteps == 0 {
		cfg.Agent.MaxSteps = 10
	}
	if cfg.Agent.ReflectionThreshold == 0 {
		cfg.Agent.ReflectionThreshold = 3
	}
	if cfg.Agent.RateLimit.RequestsPerSecond == 0 {
		cfg.Agent.RateLimit.RequestsPerSecond = 5
	}
	if cfg.Agent.RateLimit.Burst == 0 {
		cfg.Agent.RateLimit.Burst = 10
	}

	if cfg.MCP.Settings.DefaultTimeout == 0 {
		cfg.MCP.Settings.DefaultTimeout = 30
	}
	if cfg.MCP.Settings.MaxConnections == 0 {
		cfg.MCP.Settings.MaxConnections = 10
	}
	for name, server := range cfg.MCP.Servers {
		if server.Transport == "" {
			server.Transport = "stdio"
		}
		if server.Timeout == 0 {
			server.Timeout = cfg.MCP.Settings.DefaultTimeout
		}
		cfg.MCP.Servers[name] = server
	}

	if cfg.Quota.DailyCallLimit == 0 {
		cfg.Quota.DailyCallLimit = 1000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// validateConfig accumulates every configuration problem before returning,
// so an operator sees the whole list in one pass instead of fixing issues
// one at a time.
func validateConfig(cfg *Config) error {
	var issues []string

	if len(cfg.Providers) == 0 {
		issues = append(issues, "providers must configure at least one adapter")
	}
	if cfg.Agent.DefaultProvider != "" {
		if _, ok := cfg.Providers[cfg.Agent.DefaultProvider]; !ok {
			issues = append(issues, fmt.Sprintf("agent.default_provider %q has no matching entry in providers", cfg.Agent.DefaultProvider))
		}
	}
	for name, p := range cfg.Providers {
		switch p.Kind {
		case "github", "openrouter", "ollama", "nvidia", "gemini":
		default:
			issues = append(issues, fmt.Sprintf("providers.%s.kind %q is not one of github, openrouter, ollama, nvidia, gemini", name, p.Kind))
		}
	}

	if cfg.Agent.MaxSteps < 1 {
		issues = append(issues, "agent.max_steps must be at least 1")
	}
	if cfg.Agent.ReflectionThreshold < 1 {
		issues = append(issues, "agent.reflection_threshold must be at least 1")
	}

	for name, server := range cfg.MCP.Servers {
		if !server.Enabled {
			continue
		}
		switch server.Transport {
		case "stdio":
			if server.Command == "" {
				issues = append(issues, fmt.Sprintf("mcp.mcpServers.%s.command is required for stdio transport", name))
			}
		case "http":
		default:
			issues = append(issues, fmt.Sprintf("mcp.mcpServers.%s.transport %q must be \"stdio\" or \"http\"", name, server.Transport))
		}
	}

	if cfg.Quota.DailyCallLimit < 1 {
		issues = append(issues, "quota.daily_call_limit must be at least 1")
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q must be \"text\" or \"json\"", cfg.Logging.Format))
	}

	if len(issues) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(issues, "\n  - "))
	}
	return nil
}

// MCPTimeout returns the configured timeout for server as a time.Duration.
func (c MCPServerEntry) MCPTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}
