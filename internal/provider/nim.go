package provider

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentbridge/agentbridge/internal/message"
)

const nimDefaultBaseURL = "https://integrate.api.nvidia.com/v1"

// nimDefaultTemperature, nimDefaultTopP, and nimDefaultMaxTokens are the
// NVIDIA NIM sampling defaults applied when a request does not specify its
// own; callers can still override any of the three via Params.
const (
	nimDefaultTemperature = 0.2
	nimDefaultTopP        = 0.7
	nimDefaultMaxTokens   = 8192
)

// NIMConfig configures the NVIDIA NIM adapter.
type NIMConfig struct {
	APIKey       string
	BaseURL      string // defaults to nimDefaultBaseURL
	DefaultModel string
}

// NIMAdapter speaks the same OpenAI-compatible Chat Completions SSE
// framing as the GitHub adapter, with NIM's own default sampling
// parameters applied when the caller doesn't supply its own.
type NIMAdapter struct {
	client  *openai.Client
	cfg     NIMConfig
	retrier retrier
}

func NewNIMAdapter(cfg NIMConfig) (*NIMAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("nim: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = nimDefaultBaseURL
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	return &NIMAdapter{client: openai.NewClientWithConfig(clientCfg), cfg: cfg, retrier: newRetrier(3, time.Second)}, nil
}

func (a *NIMAdapter) Name() string                    { return "nim" }
func (a *NIMAdapter) Available() bool                 { return a.client != nil }
func (a *NIMAdapter) SupportsTools(model string) bool  { return true }
func (a *NIMAdapter) SupportedModels() []string        { return []string{"meta/llama3-70b-instruct", "nvidia/nemotron-4-340b-instruct"} }

func (a *NIMAdapter) Stream(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (<-chan *message.StreamChunk, error) {
	if model == "" {
		model = a.cfg.DefaultModel
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Stream:      true,
		Temperature: nimDefaultTemperature,
		TopP:        nimDefaultTopP,
		MaxTokens:   nimDefaultMaxTokens,
	}
	applyParams(&req, params)
	if len(tools) > 0 {
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
