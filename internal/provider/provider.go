// Package provider implements the Provider Adapter and Stream Dispatcher:
// a uniform streaming interface over five provider-specific wire protocols
// (GitHub/Azure Inference, OpenRouter, NVIDIA NIM, Ollama, Gemini), plus the
// Dispatcher that picks an adapter by model name and folds a chunk stream
// into a single response when a caller needs non-streaming semantics.
package provider

import (
	"context"

	"github.com/agentbridge/agentbridge/internal/message"
)

// Params carries per-call sampling overrides. Zero values mean "use the
// adapter's default" rather than "use the wire protocol's default", so
// adapters like NIM that set non-zero defaults can tell the two apart.
type Params struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   int
}

// Model describes one model an adapter can serve.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
}

// Adapter is the capability interface every provider-specific adapter
// implements as a value. The Dispatcher indexes these by the model names
// each one's SupportedModels lists; it keeps no lookup by provider tag. The
// GitHub and NIM adapters share the go-openai streaming code in github.go;
// the other three have wire code of their own.
type Adapter struct {
	// Name is the provider tag used in ProviderError and logs.
	Name func() string

	// Stream converts messages/tools to the provider's wire format,
	// invokes the provider, and returns a channel of canonical chunks.
	// The channel is closed when the stream ends (successfully or not);
	// the final chunk sent before close may carry Err.
	Stream func(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (<-chan *message.StreamChunk, error)

	// SupportedModels lists the model IDs this adapter knows how to serve.
	SupportedModels func() []string

	// Available reports whether the adapter is configured (API key/base
	// URL present) and can be used at all.
	Available func() bool

	// SupportsTools reports whether a given model accepts tool/function
	// definitions; models on a provider's "tool-unsupported" list answer
	// false so the adapter silently drops Tools rather than erroring.
	SupportsTools func(model string) bool
}

// concreteAdapter is the method set every wire-protocol-specific adapter
// type (GitHubAdapter, OpenRouterAdapter, NIMAdapter, OllamaAdapter,
// GeminiAdapter) implements.
type concreteAdapter interface {
	Name() string
	Stream(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (<-chan *message.StreamChunk, error)
	SupportedModels() []string
	Available() bool
	SupportsTools(model string) bool
}

// Wrap lifts a concrete adapter into the Adapter struct-of-funcs value the
// Dispatcher registers, so cmd/agentbridge never has to spell out the
// method-to-field assignment for each of the five wire protocols.
func Wrap(a concreteAdapter) *Adapter {
	return &Adapter{
		Name:            a.Name,
		Stream:          a.Stream,
		SupportedModels: a.SupportedModels,
		Available:       a.Available,
		SupportsTools:   a.SupportsTools,
	}
}
