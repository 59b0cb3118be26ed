package provider

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentbridge/agentbridge/internal/message"
)

// GitHubConfig configures the GitHub/Azure AI Inference adapter. Both
// GitHub Models and Azure OpenAI deployments speak the same
// OpenAI-compatible Chat Completions wire format over SSE, distinguished
// only by endpoint and the api-key header, so one adapter serves both.
type GitHubConfig struct {
	Endpoint     string // e.g. https://models.inference.ai.azure.com or an Azure resource endpoint
	APIKey       string
	DefaultModel string
	NoToolModels map[string]bool // models that must never receive a tools argument
}

// GitHubAdapter implements the GitHub/Azure Inference wire protocol: POST
// {endpoint}/chat/completions with header api-key, SSE framing, "data:
// [DONE]" terminator.
type GitHubAdapter struct {
	client  *openai.Client
	cfg     GitHubConfig
	retrier retrier
}

// NewGitHubAdapter builds the adapter. The api-key header is set via a
// custom HTTP transport since go-openai's default config sends an
// Authorization bearer token, not GitHub/Azure's api-key header.
func NewGitHubAdapter(cfg GitHubConfig) (*GitHubAdapter, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("github: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("github: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.Endpoint
	clientCfg.HTTPClient.Transport = apiKeyHeaderTransport{key: cfg.APIKey, base: clientCfg.HTTPClient.Transport}
	return &GitHubAdapter{client: openai.NewClientWithConfig(clientCfg), cfg: cfg, retrier: newRetrier(3, time.Second)}, nil
}

func (a *GitHubAdapter) Name() string { return "github" }

func (a *GitHubAdapter) Available() bool { return a.client != nil }

func (a *GitHubAdapter) SupportsTools(model string) bool {
	return !a.cfg.NoToolModels[model]
}

func (a *GitHubAdapter) SupportedModels() []string {
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-35-turbo"}
}

func (a *GitHubAdapter) Stream(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (<-chan *message.StreamChunk, error) {
	if model == "" {
		model = a.cfg.DefaultModel
	}
	req := openai.ChatCompletionRequest{
		Model:         model,
		Messages:      toOpenAIMessages(messages),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	applyParams(&req, params)
	if len(tools) > 0 && a.SupportsTools(model) {
		req.Tools = toOpenAITools(tools)
	}

	var stream *openai.ChatCompletionStream
	err := a.retrier.do(ctx, IsRetryable, func() error {
		s, err := a.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return wrapProviderErr(a.Name(), model, err)
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(chan *message.StreamChunk)
	go pumpOpenAIStream(ctx, stream, out, a.Name(), model)
	return out, nil
}

func applyParams(req *openai.ChatCompletionRequest, p Params) {
	if p.Temperature != nil {
		req.Temperature = float32(*p.Temperature)
	}
	if p.TopP != nil {
		req.TopP = float32(*p.TopP)
	}
	if p.MaxTokens > 0 {
		req.MaxTokens = p.MaxTokens
	}
}

func wrapProviderErr(provider, model string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return NewProviderError(provider, model, err)
}

// pumpOpenAIStream drains an OpenAI-wire SSE stream into canonical chunks,
// shared by the GitHub and NIM adapters, which both read go-openai's typed
// Chat Completions stream (OpenRouter decodes its SSE itself, see
// OpenRouterAdapter.pump).
func pumpOpenAIStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- *message.StreamChunk, providerName, model string) {
	defer close(out)
	defer stream.Close()

	toolCalls := map[int]*message.ToolCallDelta{}
	finished := false
	for {
		select {
		case <-ctx.Done():
			out <- &message.StreamChunk{Model: model, Err: ctx.Err()}
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if !finished {
					out <- &message.StreamChunk{
						ID: resp.ID, Model: model,
						Choices: []message.Choice{{Delta: flushToolCalls(toolCalls), FinishReason: message.FinishStop}},
					}
				}
				return
			}
			out <- &message.StreamChunk{Model: model, Err: wrapProviderErr(providerName, model, err)}
			return
		}
		if len(resp.Choices) == 0 {
			if resp.Usage != nil {
				out <- &message.StreamChunk{ID: resp.ID, Model: model, Usage: &message.Usage{
					PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens, TotalTokens: resp.Usage.TotalTokens,
				}}
			}
			continue
		}

		choice := resp.Choices[0]
		delta := message.Delta{Content: choice.Delta.Content}

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
		case openai.FinishReasonToolCalls:
			finish = message.FinishToolCalls
			delta = flushToolCalls(toolCalls)
		case openai.FinishReasonStop:
			finish = message.FinishStop
		case openai.FinishReasonLength:
			finish = message.FinishLength
		}
		if finish != "" {
			finished = true
		}

		out <- &message.StreamChunk{
			ID: resp.ID, Model: model,
			Choices: []message.Choice{{Delta: delta, FinishReason: finish}},
		}
	}
}

func flushToolCalls(calls map[int]*message.ToolCallDelta) message.Delta {
	if len(calls) == 0 {
		return message.Delta{}
	}
	out := make([]message.ToolCallDelta, 0, len(calls))
	for _, tc := range calls {
		out = append(out, *tc)
	}
	return message.Delta{ToolCalls: out}
}
