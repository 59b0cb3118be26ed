package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentbridge/agentbridge/internal/message"
)

// OllamaConfig configures the Ollama adapter.
type OllamaConfig struct {
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// OllamaAdapter speaks Ollama's own wire format: JSON-Lines (not SSE)
// POSTed once to /api/chat with stream:true, one JSON object response per
// line.
type OllamaAdapter struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

func NewOllamaAdapter(cfg OllamaConfig) *OllamaAdapter {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaAdapter{client: &http.Client{Timeout: timeout}, baseURL: baseURL, defaultModel: strings.TrimSpace(cfg.DefaultModel)}
}

func (a *OllamaAdapter) Name() string                   { return "ollama" }
func (a *OllamaAdapter) Available() bool                { return a.client != nil }
func (a *OllamaAdapter) SupportsTools(model string) bool { return true }
func (a *OllamaAdapter) SupportedModels() []string {
	if a.defaultModel == "" {
		return nil
	}
	return []string{a.defaultModel}
}

func (a *OllamaAdapter) Stream(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (<-chan *message.StreamChunk, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = a.defaultModel
	}
	if model == "" {
		return nil, NewProviderError("ollama", model, errors.New("model is required"))
	}

	payload := ollamaChatRequest{Model: model, Stream: true, Messages: buildOllamaMessages(messages)}
	if len(tools) > 0 {
		payload.Tools = toOpenAITools(tools)
	}
	if params.MaxTokens > 0 {
		payload.Options = map[string]any{"num_predict": params.MaxTokens}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProviderError("ollama", model, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError("ollama", model, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, NewProviderError("ollama", model, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, NewProviderError("ollama", model, fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))).WithStatus(resp.StatusCode)
	}

	out := make(chan *message.StreamChunk)
	go a.streamResponse(ctx, resp.Body, out, model)
	return out, nil
}

func (a *OllamaAdapter) streamResponse(ctx context.Context, body io.ReadCloser, out chan<- *message.StreamChunk, model string) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	emitted := map[string]bool{}
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- &message.StreamChunk{Model: model, Err: ctx.Err()}
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			out <- &message.StreamChunk{Model: model, Err: NewProviderError("ollama", model, fmt.Errorf("decode response: %w", err))}
			return
		}
		if resp.Error != "" {
			out <- &message.StreamChunk{Model: model, Err: NewProviderError("ollama", model, errors.New(resp.Error))}
			return
		}

		var delta message.Delta
		var toolCalls []message.ToolCallDelta
		if resp.Message != nil {
			delta.Content = resp.Message.Content
			for i, tc := range resp.Message.ToolCalls {
				id := strings.TrimSpace(tc.ID)
				if id == "" {
					id = toolCallKey(tc)
				}
				if id == "" {
					id = uuid.NewString()
				}
				if emitted[id] {
					continue
				}
				emitted[id] = true
				args := tc.Function.Arguments
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				toolCalls = append(toolCalls, message.ToolCallDelta{
					Index: i, ID: id, Name: strings.TrimSpace(tc.Function.Name), Arguments: string(args),
				})
			}
		}
		if len(toolCalls) > 0 {
			delta.ToolCalls = toolCalls
		}

		if resp.Done {
			finish := message.FinishStop
			if len(toolCalls) > 0 {
				finish = message.FinishToolCalls
			}
			total := resp.PromptEvalCount + resp.EvalCount
			out <- &message.StreamChunk{
				Model: model,
				Choices: []message.Choice{{Delta: delta, FinishReason: finish}},
				Usage: &message.Usage{PromptTokens: resp.PromptEvalCount, CompletionTokens: resp.EvalCount, TotalTokens: total},
			}
			return
		}
		if delta.Content != "" || len(delta.ToolCalls) > 0 {
			out <- &message.StreamChunk{Model: model, Choices: []message.Choice{{Delta: delta}}}
		}
	}
	if err := scanner.Err(); err != nil {
		out <- &message.StreamChunk{Model: model, Err: NewProviderError("ollama", model, err)}
	}
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    any                 `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaChatResponse struct {
	Message         *ollamaChatMessage `json:"message"`
	Done            bool               `json:"done"`
	Error           string             `json:"error"`
	EvalCount       int                `json:"eval_count"`
	PromptEvalCount int                `json:"prompt_eval_count"`
}

type ollamaToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func buildOllamaMessages(messages []message.Message) []ollamaChatMessage {
	out := make([]ollamaChatMessage, 0, len(messages))
	toolNames := map[string]string{}
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			if tc.ID != "" && tc.Name != "" {
				toolNames[tc.ID] = tc.Name
			}
		}
	}
	for _, m := range messages {
		switch m.Role {
		case message.RoleAssistant:
			om := ollamaChatMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				args := tc.Arguments
				if len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				om.ToolCalls = append(om.ToolCalls, ollamaToolCall{ID: tc.ID, Type: "function", Function: ollamaToolFunction{Name: tc.Name, Arguments: args}})
			}
			out = append(out, om)
		case message.RoleTool:
			out = append(out, ollamaChatMessage{Role: "tool", Content: m.Content, ToolName: toolNames[m.ToolCallID]})
		case message.RoleSystem:
			out = append(out, ollamaChatMessage{Role: "system", Content: message.FlattenContent(m)})
		default:
			out = append(out, ollamaChatMessage{Role: "user", Content: message.FlattenContent(m)})
		}
	}
	return out
}

func toolCallKey(tc ollamaToolCall) string {
	if strings.TrimSpace(tc.ID) != "" {
		return strings.TrimSpace(tc.ID)
	}
	name := strings.TrimSpace(tc.Function.Name)
	args := strings.TrimSpace(string(tc.Function.Arguments))
	if name == "" && args == "" {
		return ""
	}
	return name + ":" + args
}
