package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/agentbridge/agentbridge/internal/message"
)

func TestExecutor_ExecuteAll_Sequential(t *testing.T) {
	registry := NewRegistry()
	registry.Register(TextAnalysisHandler{})
	registry.Register(SummarizeTextHandler{})

	exec := NewExecutor(registry, nil, ExecutorConfig{}, nil)
	calls := []message.ToolCall{
		{ID: "call_1", Name: "textAnalysis", Arguments: json.RawMessage(`{"text":"hello world."}`)},
		{ID: "call_2", Name: "summarizeText", Arguments: json.RawMessage(`{"text":"First. Second."}`)},
	}

	results := exec.ExecuteAll(context.Background(), calls, nil)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.ToolCallID != calls[i].ID {
			t.Errorf("result %d tool_call_id = %q, want %q", i, r.ToolCallID, calls[i].ID)
		}
		if r.IsError {
			t.Errorf("result %d unexpectedly an error: %s", i, r.Content)
		}
	}
}

func TestExecutor_UnknownTool(t *testing.T) {
	exec := NewExecutor(NewRegistry(), nil, ExecutorConfig{}, nil)
	results := exec.ExecuteAll(context.Background(), []message.ToolCall{{ID: "c1", Name: "doesNotExist"}}, nil)
	if !results[0].IsError {
		t.Fatal("expected error result for unknown tool")
	}
}

func TestExecutor_MissingArguments(t *testing.T) {
	registry := NewRegistry()
	registry.Register(TextAnalysisHandler{})
	exec := NewExecutor(registry, nil, ExecutorConfig{}, nil)

	results := exec.ExecuteAll(context.Background(), []message.ToolCall{
		{ID: "c1", Name: "textAnalysis", Arguments: json.RawMessage(`{}`)},
	}, nil)
	if !results[0].IsError {
		t.Fatal("expected error result for missing required argument")
	}
}

type stubMCP struct {
	result  string
	isError bool
	err     error
}

func (s stubMCP) CallTool(ctx context.Context, key string, args json.RawMessage) (string, bool, error) {
	return s.result, s.isError, s.err
}

func TestExecutor_MCPRouting(t *testing.T) {
	exec := NewExecutor(NewRegistry(), stubMCP{result: `{"success":true,"content":"file contents"}`}, ExecutorConfig{}, nil)
	results := exec.ExecuteAll(context.Background(), []message.ToolCall{
		{ID: "c1", Name: "mcp_filesystem_read_file", Arguments: json.RawMessage(`{"path":"README.md"}`)},
	}, nil)
	if results[0].IsError {
		t.Fatalf("unexpected error: %s", results[0].Content)
	}
	if results[0].Content != `{"success":true,"content":"file contents"}` {
		t.Errorf("unexpected content: %s", results[0].Content)
	}
}

func TestExecutor_MCPNotEnabled(t *testing.T) {
	exec := NewExecutor(NewRegistry(), nil, ExecutorConfig{}, nil)
	results := exec.ExecuteAll(context.Background(), []message.ToolCall{{ID: "c1", Name: "mcp_filesystem_read_file"}}, nil)
	if !results[0].IsError {
		t.Fatal("expected error when MCP backend is nil")
	}
}

func TestExecutor_GenerateImage_PopulatesSideChannelOnly(t *testing.T) {
	registry := NewRegistry()
	registry.Register(GenerateImageHandler{})
	exec := NewExecutor(registry, nil, ExecutorConfig{}, nil)

	var slot ImageSlot
	results := exec.ExecuteAll(context.Background(), []message.ToolCall{
		{ID: "c1", Name: "generateImage", Arguments: json.RawMessage(`{"prompt":"a cat"}`)},
	}, &slot)

	if results[0].Content != `{"success":true}` {
		t.Errorf("expected the model to see only a success marker, got %s", results[0].Content)
	}
	if !slot.IsSet() {
		t.Fatal("expected image side-channel slot to be populated")
	}
}

func TestExecutor_PanicRecovered(t *testing.T) {
	registry := NewRegistry()
	registry.Register(panicHandler{})
	exec := NewExecutor(registry, nil, ExecutorConfig{}, nil)

	results := exec.ExecuteAll(context.Background(), []message.ToolCall{{ID: "c1", Name: "panicker", Arguments: json.RawMessage(`{}`)}}, nil)
	if !results[0].IsError {
		t.Fatal("expected panic to be converted into an error result")
	}
}

type panicHandler struct{}

func (panicHandler) Name() string                  { return "panicker" }
func (panicHandler) Description() string            { return "panics" }
func (panicHandler) Schema() map[string]any          { return nil }
func (panicHandler) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	panic(errors.New("boom"))
}
