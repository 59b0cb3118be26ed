package message

// FinishReason enumerates the terminal reasons a choice's stream can end.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// ToolCallDelta is a fragment of a ToolCall as it streams in. Index ties
// fragments from the same logical tool call together so an aggregator can
// merge them positionally even when the provider splits id/name/arguments
// across several chunks.
type ToolCallDelta struct {
	Index     int    `json:"index"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Delta is the incremental content of one choice within a StreamChunk.
type Delta struct {
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// Choice is one of a StreamChunk's (normally singular) output streams.
type Choice struct {
	Index        int          `json:"index"`
	Delta        Delta        `json:"delta"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// Usage reports token accounting, when the provider supplies it. It is
// normally only populated on the terminal chunk of a stream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is the canonical, OpenAI-compatible incremental delta shape
// every provider adapter normalizes its wire protocol into. Within a single
// dispatcher stream every chunk shares the same Model; at most one chunk
// per choice carries a non-empty FinishReason.
type StreamChunk struct {
	ID      string   `json:"id"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`

	// Err carries a transport or protocol failure mid-stream. A chunk with
	// Err set is the last chunk the dispatcher will see for that stream.
	Err error `json:"-"`
}

// CompletionResponse is the full, folded response Dispatcher.Complete
// returns: a single message aggregated from a chunk stream.
type CompletionResponse struct {
	ID      string   `json:"id"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Message Message  `json:"message"`
	Finish  FinishReason `json:"finish_reason"`
	Usage   *Usage   `json:"usage,omitempty"`
}
