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

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentbridge/agentbridge/internal/message"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig configures the OpenRouter adapter.
type OpenRouterConfig struct {
	APIKey       string
	Referer      string
	Title        string
	DefaultModel string
}

// OpenRouterAdapter speaks the same Chat Completions wire shape as
// GitHub/Azure, but decodes the raw SSE JSON rather than go-openai's typed
// stream: OpenRouter's reasoning-model passthrough carries a "reasoning"
// delta field and a "refusal" field go-openai's ChatCompletionStreamChoiceDelta
// doesn't declare, so it never survives go-openai's own JSON decode for a
// caller to recover. A chunk whose delta.content is empty but whose
// delta.reasoning is set has delta.content rewritten to the reasoning text;
// a chunk carrying delta.refusal is rewritten to "[refusal] "+refusal.
type OpenRouterAdapter struct {
	httpClient *http.Client
	apiKey     string
	cfg        OpenRouterConfig
	retrier    retrier
}

func NewOpenRouterAdapter(cfg OpenRouterConfig) (*OpenRouterAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: api key is required")
	}
	return &OpenRouterAdapter{
		httpClient: &http.Client{Transport: openRouterHeaderTransport{referer: cfg.Referer, title: cfg.Title}},
		apiKey:     cfg.APIKey,
		cfg:        cfg,
		retrier:    newRetrier(3, time.Second),
	}, nil
}

func (a *OpenRouterAdapter) Name() string                   { return "openrouter" }
func (a *OpenRouterAdapter) Available() bool                { return a.apiKey != "" }
func (a *OpenRouterAdapter) SupportsTools(model string) bool { return true }
func (a *OpenRouterAdapter) SupportedModels() []string {
	return []string{"openrouter/auto"}
}

func (a *OpenRouterAdapter) Stream(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (<-chan *message.StreamChunk, error) {
	if model == "" {
		model = a.cfg.DefaultModel
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	applyParams(&req, params)
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: marshal request: %w", err)
	}

	var resp *http.Response
	err = a.retrier.do(ctx, IsRetryable, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterBaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
		httpReq.Header.Set("Accept", "text/event-stream")

		r, err := a.httpClient.Do(httpReq)
		if err != nil {
			return wrapProviderErr(a.Name(), model, err)
		}
		if r.StatusCode >= 400 {
			defer r.Body.Close()
			detail, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			return (&ProviderError{Provider: a.Name(), Model: model, Cause: fmt.Errorf("%s", string(detail))}).WithStatus(r.StatusCode)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(chan *message.StreamChunk)
	go a.pump(ctx, resp, out, model)
	return out, nil
}

// openRouterChunk mirrors the Chat Completions SSE chunk shape, including
// the reasoning/refusal extension fields OpenRouter adds to delta that
// go-openai's own typed delta does not declare.
type openRouterChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning,omitempty"`
			Refusal   string `json:"refusal,omitempty"`
			ToolCalls []struct {
				Index    *int   `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (a *OpenRouterAdapter) pump(ctx context.Context, resp *http.Response, out chan<- *message.StreamChunk, model string) {
	defer close(out)
	defer resp.Body.Close()

	toolCalls := map[int]*message.ToolCallDelta{}
	finished := false
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			out <- &message.StreamChunk{Model: model, Err: ctx.Err()}
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			if !finished {
				out <- &message.StreamChunk{Model: model, Choices: []message.Choice{{Delta: flushToolCalls(toolCalls), FinishReason: message.FinishStop}}}
			}
			return
		}

		var chunk openRouterChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		content := choice.Delta.Content
		if content == "" && choice.Delta.Reasoning != "" {
			content = choice.Delta.Reasoning
		}
		if choice.Delta.Refusal != "" {
			content = "[refusal] " + choice.Delta.Refusal
		}

		delta := message.Delta{Content: content}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			cur, ok := toolCalls[idx]
			if !ok {
				cur = &message.ToolCallDelta{Index: idx}
				toolCalls[idx] = cur
			}
			if tc.ID != "" {
				cur.ID = tc.ID
			}
			if tc.Function.Name != "" {
				cur.Name = tc.Function.Name
			}
			cur.Arguments += tc.Function.Arguments
		}

		finish := message.FinishReason("")
		switch choice.FinishReason {
		case "tool_calls":
			finish = message.FinishToolCalls
			delta = flushToolCalls(toolCalls)
		case "stop":
			finish = message.FinishStop
		case "length":
			finish = message.FinishLength
		}
		if finish != "" {
			finished = true
		}

		out <- &message.StreamChunk{Model: model, Choices: []message.Choice{{Delta: delta, FinishReason: finish}}}
	}

	if err := scanner.Err(); err != nil {
		out <- &message.StreamChunk{Model: model, Err: wrapProviderErr(a.Name(), model, err)}
	}
}

type openRouterHeaderTransport struct {
	referer string
	title   string
}

func (t openRouterHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return http.DefaultTransport.RoundTrip(req)
}
