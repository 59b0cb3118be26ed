// Command agentbridge runs the agent orchestration server: it loads a YAML
// configuration, wires the provider adapters, tool registry, MCP manager,
// quota gate, and agent executor together, and serves the HTTP surface
// until it receives a shutdown signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/collab"
	"github.com/agentbridge/agentbridge/internal/config"
	"github.com/agentbridge/agentbridge/internal/httpapi"
	"github.com/agentbridge/agentbridge/internal/mcp"
	"github.com/agentbridge/agentbridge/internal/provider"
	"github.com/agentbridge/agentbridge/internal/quota"
	"github.com/agentbridge/agentbridge/internal/tool"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	configPath := flag.String("config", "agentbridge.yaml", "path to the server configuration file")
	debug := flag.Bool("debug", false, "enable debug-level logging regardless of configured log level")
	flag.Parse()

	if err := run(*configPath, *debug); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Logging, debug)
	slog.SetDefault(logger)
	logger.Info("starting agentbridge", "version", version, "commit", commit, "config", configPath)

	dispatcher, err := buildDispatcher(cfg.Providers)
	if err != nil {
		return fmt.Errorf("build provider dispatcher: %w", err)
	}

	mcpManager := mcp.NewManager(buildMCPConfig(cfg.MCP), logger)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MCP.Settings.AutoInit && len(cfg.MCP.Servers) > 0 {
		if err := mcpManager.Start(ctx); err != nil {
			logger.Warn("mcp manager start reported errors", "error", err)
		}
		go mcpManager.Supervise(ctx, 30*time.Second)
	}

	quotaGate := quota.NewGate(cfg.Quota.DailyCallLimit)
	collaborator := collab.NewNoopCollaborator()
	registry := tool.NewRequestRegistry(tool.ToolsConfig{Search: true, Advanced: true}, "")
	mcpBackend := mcp.NewBackend(mcpManager)
	toolExecutor := tool.NewExecutor(registry, mcpBackend, tool.ExecutorConfig{PerToolTimeout: 60 * time.Second}, logger)

	executor := agent.NewExecutor(dispatcher, registry, toolExecutor, mcpManager, quotaGate, collaborator, agent.Config{
		MaxSteps:            cfg.Agent.MaxSteps,
		ReflectionThreshold: cfg.Agent.ReflectionThreshold,
		DefaultModel:        defaultModel(cfg),
		SystemPrompts:       cfg.Agent.SystemPrompts,
		RateLimitBackoff:    60 * time.Second,
	}, logger)

	server := httpapi.NewServer(executor, dispatcher, mcpBackend, httpapi.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.HTTPPort,
		RequestsPerSecond: cfg.Agent.RateLimit.RequestsPerSecond,
		Burst:             cfg.Agent.RateLimit.Burst,
		ToolTimeout:       60 * time.Second,
	}, logger)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", "error", err)
	}
	if err := mcpManager.Stop(); err != nil {
		logger.Warn("mcp manager shutdown error", "error", err)
	}

	logger.Info("agentbridge stopped gracefully")
	return nil
}

func newLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func defaultModel(cfg *config.Config) string {
	if entry, ok := cfg.Providers[cfg.Agent.DefaultProvider]; ok {
		return entry.Model
	}
	return ""
}

func buildDispatcher(providers map[string]config.ProviderEntry) (*provider.Dispatcher, error) {
	dispatcher := provider.NewDispatcher()
	for name, entry := range providers {
		adapter, err := buildAdapter(entry)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		if adapter != nil {
			dispatcher.Register(adapter)
		}
	}
	return dispatcher, nil
}

func buildAdapter(entry config.ProviderEntry) (*provider.Adapter, error) {
	noTools := toSet(entry.ToolUnsupportedModels)

	switch entry.Kind {
	case "github":
		a, err := provider.NewGitHubAdapter(provider.GitHubConfig{
			Endpoint: entry.BaseURL, APIKey: entry.APIKey, DefaultModel: entry.Model, NoToolModels: noTools,
		})
		if err != nil {
			return nil, err
		}
		return provider.Wrap(a), nil
	case "openrouter":
		a, err := provider.NewOpenRouterAdapter(provider.OpenRouterConfig{
			APIKey: entry.APIKey, DefaultModel: entry.Model,
		})
		if err != nil {
			return nil, err
		}
		return provider.Wrap(a), nil
	case "nvidia":
		a, err := provider.NewNIMAdapter(provider.NIMConfig{
			APIKey: entry.APIKey, BaseURL: entry.BaseURL, DefaultModel: entry.Model,
		})
		if err != nil {
			return nil, err
		}
		return provider.Wrap(a), nil
	case "ollama":
		a := provider.NewOllamaAdapter(provider.OllamaConfig{
			BaseURL: entry.BaseURL, DefaultModel: entry.Model, Timeout: 120 * time.Second,
		})
		return provider.Wrap(a), nil
	case "gemini":
		a, err := provider.NewGeminiAdapter(context.Background(), provider.GeminiConfig{
			APIKey: entry.APIKey, DefaultModel: entry.Model,
		})
		if err != nil {
			return nil, err
		}
		return provider.Wrap(a), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", entry.Kind)
	}
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func buildMCPConfig(cfg config.MCPFileConfig) *mcp.Config {
	mcpCfg := &mcp.Config{Enabled: len(cfg.Servers) > 0}
	for name, entry := range cfg.Servers {
		if !entry.Enabled {
			continue
		}
		transport := mcp.TransportStdio
		if entry.Transport == "http" {
			transport = mcp.TransportHTTP
		}
		mcpCfg.Servers = append(mcpCfg.Servers, &mcp.ServerConfig{
			ID:        name,
			Name:      name,
			Transport: transport,
			Command:   entry.Command,
			Args:      entry.Args,
			Env:       entry.Env,
			Timeout:   entry.MCPTimeout(),
			AutoStart: true,
		})
	}
	return mcpCfg
}
