// Package httpapi exposes the Agent Executor and Stream Dispatcher over
// HTTP: a non-streaming and a streaming agent endpoint, plus non-streaming
// and streaming single-round chat endpoints that bypass the agent loop
// entirely.
package httpapi

import (
	"github.com/agentbridge/agentbridge/internal/agent"
	"github.com/agentbridge/agentbridge/internal/tool"
)

// agentRequestBody is the wire shape of AgentRequest.
type agentRequestBody struct {
	Prompt    string `json:"prompt"`
	UserID    string `json:"user_id"`
	ModelName string `json:"model_name"`
	SessionID string `json:"session_id,omitempty"`

	EnableMemory     bool `json:"enable_memory"`
	EnableReflection bool `json:"enable_reflection"`
	EnableReactMode  bool `json:"enable_react_mode"`
	EnableMCP        bool `json:"enable_mcp"`

	MaxSteps int `json:"max_steps,omitempty"`
	ToolsConfig struct {
		Search   bool `json:"search"`
		Advanced bool `json:"advanced"`
	} `json:"tools_config"`
	SystemPromptOverride string            `json:"system_prompt_override,omitempty"`
	Context              map[string]string `json:"context,omitempty"`
	Image                string            `json:"image,omitempty"`
	Audio                string            `json:"audio,omitempty"`
}

func (b agentRequestBody) toRequest() agent.Request {
	return agent.Request{
		Prompt:               b.Prompt,
		UserID:               b.UserID,
		Model:                b.ModelName,
		SessionID:            b.SessionID,
		EnableMemory:         b.EnableMemory,
		EnableReflection:     b.EnableReflection,
		EnableReactMode:      b.EnableReactMode,
		EnableMCP:            b.EnableMCP,
		MaxSteps:             b.MaxSteps,
		ToolsConfig:          tool.ToolsConfig{Search: b.ToolsConfig.Search, Advanced: b.ToolsConfig.Advanced},
		SystemPromptOverride: b.SystemPromptOverride,
		Context:              b.Context,
		Image:                b.Image,
		Audio:                b.Audio,
	}
}

// chatRequestBody is the wire shape for the single-round chat endpoints:
// a plain message list and model name, no agent-loop fields.
type chatRequestBody struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type errorBody struct {
	Error string `json:"error"`
}
