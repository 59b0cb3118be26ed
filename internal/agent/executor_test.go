package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbridge/agentbridge/internal/collab"
	"github.com/agentbridge/agentbridge/internal/mcp"
	"github.com/agentbridge/agentbridge/internal/message"
	"github.com/agentbridge/agentbridge/internal/provider"
	"github.com/agentbridge/agentbridge/internal/tool"
)

// scriptedDispatcher returns one queued response (or error) per call, in
// order, and records every call it received.
type scriptedDispatcher struct {
	responses []*message.CompletionResponse
	errs      []error
	calls     int
}

func (d *scriptedDispatcher) Complete(_ context.Context, _ []message.Message, _ string, _ []message.ToolDefinition, _ provider.Params) (*message.CompletionResponse, error) {
	i := d.calls
	d.calls++
	var err error
	if i < len(d.errs) {
		err = d.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(d.responses) {
		return d.responses[i], nil
	}
	return &message.CompletionResponse{Message: message.Message{Role: message.RoleAssistant, Content: "done"}}, nil
}

// scriptedToolBackend returns one fixed set of results for every round it's
// asked to execute, regardless of the calls passed in.
type scriptedToolBackend struct {
	result message.ToolResult
}

func (b *scriptedToolBackend) ExecuteAll(_ context.Context, calls []message.ToolCall, _ *tool.ImageSlot) []message.ToolResult {
	out := make([]message.ToolResult, len(calls))
	for i, c := range calls {
		r := b.result
		r.ToolCallID = c.ID
		out[i] = r
	}
	return out
}

func assistantMsg(content string) message.Message {
	return message.Message{Role: message.RoleAssistant, Content: content}
}

func assistantToolCall(id, name string) message.Message {
	return message.Message{Role: message.RoleAssistant, ToolCalls: []message.ToolCall{{ID: id, Name: name, Arguments: []byte(`{}`)}}}
}

func newTestExecutor(dispatcher ProviderDispatcher, toolBackend ToolBackend, cfg Config) *Executor {
	return NewExecutor(dispatcher, tool.NewRegistry(), toolBackend, nil, nil, collab.NewNoopCollaborator(), cfg, nil)
}

func TestRun_SimpleNoTools(t *testing.T) {
	d := &scriptedDispatcher{responses: []*message.CompletionResponse{
		{Message: assistantMsg("the answer is 4")},
	}}
	e := newTestExecutor(d, &scriptedToolBackend{}, Config{})

	result, err := e.Run(context.Background(), Request{Prompt: "what is 2+2", Model: "m"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.StepsTaken)
	assert.Equal(t, "the answer is 4", result.Response)
	require.Len(t, result.ExecutionTrace, 3)
	assert.Equal(t, PhaseIdle, result.ExecutionTrace[0].Phase)
	assert.Equal(t, PhaseExecuting, result.ExecutionTrace[1].Phase)
	assert.Equal(t, PhaseResponding, result.ExecutionTrace[2].Phase)
}

func TestRun_SimpleOneToolRound(t *testing.T) {
	d := &scriptedDispatcher{responses: []*message.CompletionResponse{
		{Message: assistantToolCall("call-1", "searchDuckDuckGo")},
		{Message: assistantMsg("found it")},
	}}
	e := newTestExecutor(d, &scriptedToolBackend{result: message.ToolResult{Content: "3 results"}}, Config{})

	result, err := e.Run(context.Background(), Request{Prompt: "search for something", Model: "m"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.StepsTaken)
	assert.Equal(t, "found it", result.Response)
	require.Len(t, result.ToolsUsed, 1)
	assert.Equal(t, "searchDuckDuckGo", result.ToolsUsed[0].Name)
	assert.Equal(t, 2, d.calls)
}

func TestRun_ReactWithReflection(t *testing.T) {
	d := &scriptedDispatcher{responses: []*message.CompletionResponse{
		{Message: assistantMsg("plan: search then answer")},
		{Message: assistantToolCall("call-1", "searchDuckDuckGo")},
		{Message: assistantMsg("reflecting on progress")},
		{Message: assistantMsg("final answer")},
	}}
	e := newTestExecutor(d, &scriptedToolBackend{result: message.ToolResult{Content: "ok"}}, Config{ReflectionThreshold: 1})

	result, err := e.Run(context.Background(), Request{
		Prompt: "research this", Model: "m", EnableReactMode: true, EnableReflection: true, MaxSteps: 5,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "final answer", result.Response)
	assert.Equal(t, 1, result.StepsTaken)

	var sawReflection, sawPlanning, sawAction bool
	for _, s := range result.ReasoningSteps {
		switch s.Type {
		case StepReflection:
			sawReflection = true
		case StepTaskPlanning:
			sawPlanning = true
		case StepAction:
			sawAction = true
		}
	}
	assert.True(t, sawPlanning)
	assert.True(t, sawAction)
	assert.True(t, sawReflection)
}

func TestRun_StepBudgetExhausted(t *testing.T) {
	d := &scriptedDispatcher{responses: []*message.CompletionResponse{
		{Message: assistantMsg("plan")},
		{Message: assistantToolCall("call-1", "searchDuckDuckGo")},
		{Message: assistantToolCall("call-2", "searchDuckDuckGo")},
		{Message: assistantMsg("final summary")},
	}}
	e := newTestExecutor(d, &scriptedToolBackend{result: message.ToolResult{Content: "ok"}}, Config{})

	result, err := e.Run(context.Background(), Request{
		Prompt: "keep digging", Model: "m", EnableReactMode: true, MaxSteps: 2,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.StepsTaken)
	assert.Equal(t, "final summary", result.Response)

	last := result.ExecutionTrace[len(result.ExecutionTrace)-1]
	assert.Equal(t, PhaseResponding, last.Phase)
	assert.Contains(t, last.Action, "summary")
}

func TestRun_ProviderRateLimitRetries(t *testing.T) {
	rateLimitErr := &provider.ProviderError{Reason: provider.FailoverRateLimit, Provider: "p", Model: "m"}
	d := &scriptedDispatcher{
		errs:      []error{rateLimitErr},
		responses: []*message.CompletionResponse{nil, {Message: assistantMsg("recovered")}},
	}
	e := newTestExecutor(d, &scriptedToolBackend{}, Config{RateLimitBackoff: time.Millisecond, RateLimitMaxRetries: 2})

	var events []StepEvent
	result, err := e.run(context.Background(), Request{Prompt: "hi", Model: "m"}, func(ev StepEvent) { events = append(events, ev) })
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "recovered", result.Response)

	var sawRetry bool
	for _, ev := range events {
		if ev.Status == StatusError {
			sawRetry = true
			assert.NotNil(t, ev.Details["retry_in"])
		}
	}
	assert.True(t, sawRetry)
}

func TestRun_ProviderNonRateLimitErrorIsFatal(t *testing.T) {
	d := &scriptedDispatcher{errs: []error{errors.New("boom")}}
	e := newTestExecutor(d, &scriptedToolBackend{}, Config{})

	result, err := e.Run(context.Background(), Request{Prompt: "hi", Model: "m"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "boom")
}

func TestRun_QuotaExceededFailsBeforeDispatch(t *testing.T) {
	d := &scriptedDispatcher{}
	gate := fakeQuota{err: errors.New("quota exceeded for user")}
	e := NewExecutor(d, tool.NewRegistry(), &scriptedToolBackend{}, nil, gate, collab.NewNoopCollaborator(), Config{}, nil)

	result, err := e.Run(context.Background(), Request{Prompt: "hi", Model: "m", UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, d.calls)
}

type fakeQuota struct{ err error }

func (f fakeQuota) Check(string, string) error { return f.err }

type fakeMCPTools struct{ schemas []mcp.ToolSchema }

func (f fakeMCPTools) ToolSchemas() []mcp.ToolSchema { return f.schemas }

func TestRun_MCPToolsAreFoldedIntoToolList(t *testing.T) {
	d := &scriptedDispatcher{responses: []*message.CompletionResponse{
		{Message: assistantMsg("no tools needed")},
	}}
	e := NewExecutor(d, tool.NewRegistry(), &scriptedToolBackend{}, fakeMCPTools{schemas: []mcp.ToolSchema{
		{ServerID: "filesystem", Name: "readFile", Description: "reads a file", InputSchema: []byte(`{"type":"object"}`)},
	}}, nil, collab.NewNoopCollaborator(), Config{}, nil)

	result, err := e.Run(context.Background(), Request{Prompt: "hi", Model: "m", EnableMCP: true})
	require.NoError(t, err)
	assert.True(t, result.Success)
}
