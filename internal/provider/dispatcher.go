package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agentbridge/agentbridge/internal/message"
)

// ErrNoAdapterForModel is returned when no registered adapter claims a
// given model name.
var ErrNoAdapterForModel = errors.New("provider: no adapter registered for model")

// Dispatcher picks an adapter by model name from a static membership table
// built at startup and forwards or folds its chunk stream.
type Dispatcher struct {
	mu       sync.RWMutex
	adapters []*Adapter
	byModel  map[string]*Adapter
}

// NewDispatcher builds a Dispatcher from a set of adapters, indexing each
// one's SupportedModels() into a lookup table.
func NewDispatcher(adapters ...*Adapter) *Dispatcher {
	d := &Dispatcher{byModel: map[string]*Adapter{}}
	for _, a := range adapters {
		d.Register(a)
	}
	return d
}

// Register adds an adapter to the dispatch table, indexing its supported
// models. Later registrations win on model-name collisions.
func (d *Dispatcher) Register(a *Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters = append(d.adapters, a)
	for _, m := range a.SupportedModels() {
		d.byModel[m] = a
	}
}

func (d *Dispatcher) lookup(model string) (*Adapter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if a, ok := d.byModel[model]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoAdapterForModel, model)
}

// Stream picks an adapter by model name and forwards its canonical chunk
// stream unmodified.
func (d *Dispatcher) Stream(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (<-chan *message.StreamChunk, error) {
	a, err := d.lookup(model)
	if err != nil {
		return nil, err
	}
	if !a.Available() {
		return nil, &ProviderError{Reason: FailoverUnavailable, Provider: a.Name(), Model: model, Cause: errors.New("provider not configured")}
	}
	if len(tools) > 0 && !a.SupportsTools(model) {
		tools = nil
	}
	return a.Stream(ctx, messages, model, tools, params)
}

// Complete consumes a chunk stream and folds it into a single response:
// concatenating delta.content across chunks, merging delta.tool_calls by
// index (accumulating argument fragments), taking finish_reason from the
// terminal chunk, and surfacing the last usage seen. A mid-stream failure
// yields an error alongside the partial content already produced.
func (d *Dispatcher) Complete(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params Params) (*message.CompletionResponse, error) {
	chunks, err := d.Stream(ctx, messages, model, tools, params)
	if err != nil {
		return nil, err
	}
	return Fold(model, chunks)
}

// Fold drains a chunk channel and folds it deterministically into a single
// CompletionResponse, given the same chunk sequence every call (testable
// property: Fold is a pure function of the sequence it's handed).
func Fold(model string, chunks <-chan *message.StreamChunk) (*message.CompletionResponse, error) {
	resp := &message.CompletionResponse{Model: model}
	var content string
	toolCalls := map[int]*message.ToolCallDelta{}
	var streamErr error

	for c := range chunks {
		if c.Err != nil {
			streamErr = c.Err
			continue
		}
		if c.ID != "" {
			resp.ID = c.ID
		}
		if c.Created != 0 {
			resp.Created = c.Created
		}
		if c.Usage != nil {
			resp.Usage = c.Usage
		}
		for _, choice := range c.Choices {
			content += choice.Delta.Content
			for _, tc := range choice.Delta.ToolCalls {
				cur, ok := toolCalls[tc.Index]
				if !ok {
					cur = &message.ToolCallDelta{Index: tc.Index}
					toolCalls[tc.Index] = cur
				}
				if tc.ID != "" {
					cur.ID = tc.ID
				}
				if tc.Name != "" {
					cur.Name = tc.Name
				}
				cur.Arguments += tc.Arguments
			}
			if choice.FinishReason != "" {
				resp.Finish = choice.FinishReason
			}
		}
	}

	resp.Message = message.Message{Role: message.RoleAssistant, Content: content}
	if len(toolCalls) > 0 {
		indices := make([]int, 0, len(toolCalls))
		for idx := range toolCalls {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			tc := toolCalls[idx]
			resp.Message.ToolCalls = append(resp.Message.ToolCalls, message.ToolCall{
				ID: tc.ID, Name: tc.Name, Arguments: []byte(tc.Arguments),
			})
		}
	}

	if streamErr != nil {
		return resp, streamErr
	}
	return resp, nil
}
