// Package agent implements the Agent Executor: the state machine that
// drives either a ReAct (reasoning-action-reflection) loop or a single-shot
// tool-use loop over the Provider Dispatcher and Tool Executor, streaming
// intermediate step events and enforcing the per-request quota gate.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentbridge/agentbridge/internal/collab"
	"github.com/agentbridge/agentbridge/internal/message"
	"github.com/agentbridge/agentbridge/internal/mcp"
	"github.com/agentbridge/agentbridge/internal/provider"
	"github.com/agentbridge/agentbridge/internal/tool"
)

// ProviderDispatcher is the narrow capability the executor needs from the
// Stream Dispatcher, injected at construction so tests can supply a fake
// without standing up real provider adapters. Complete already folds a
// Stream call's chunks into one response (see provider.Dispatcher.Fold);
// the executor only ever needs the folded result.
type ProviderDispatcher interface {
	Complete(ctx context.Context, messages []message.Message, model string, tools []message.ToolDefinition, params provider.Params) (*message.CompletionResponse, error)
}

// ToolBackend is the narrow capability the executor needs from the Tool
// Executor.
type ToolBackend interface {
	ExecuteAll(ctx context.Context, calls []message.ToolCall, images *tool.ImageSlot) []message.ToolResult
}

// MCPToolSource is the narrow capability the executor needs to fold
// MCP-discovered tools into a request's tool list.
type MCPToolSource interface {
	ToolSchemas() []mcp.ToolSchema
}

// QuotaChecker is the narrow capability the executor needs from the Quota
// Gate.
type QuotaChecker interface {
	Check(userID, model string) error
}

// Config holds the Agent Executor's defaults, independent of how they were
// loaded (internal/config wires these from the startup YAML).
type Config struct {
	MaxSteps            int
	ReflectionThreshold int
	DefaultModel        string
	SystemPrompts       map[string]string
	RateLimitBackoff    time.Duration
	RateLimitMaxRetries int
}

func (c Config) sanitized() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 10
	}
	if c.ReflectionThreshold <= 0 {
		c.ReflectionThreshold = 3
	}
	if c.RateLimitBackoff <= 0 {
		c.RateLimitBackoff = 60 * time.Second
	}
	if c.RateLimitMaxRetries <= 0 {
		c.RateLimitMaxRetries = 3
	}
	return c
}

// Executor drives one request at a time through the ReAct or Simple loop.
// It carries no per-request mutable state itself — everything request-scoped
// lives in the conversation value threaded through the run.
type Executor struct {
	dispatcher   ProviderDispatcher
	registry     *tool.Registry
	toolExec     ToolBackend
	mcpTools     MCPToolSource
	quota        QuotaChecker
	collaborator collab.Collaborator
	cfg          Config
	log          *slog.Logger
}

// WithTools returns a shallow copy of e scoped to a different tool registry
// and executor, sharing every other collaborator. internal/httpapi uses
// this to build a per-request tool set (Request.ToolsConfig) without
// reconstructing the Dispatcher/MCP/quota wiring on every call.
func (e *Executor) WithTools(registry *tool.Registry, toolExec ToolBackend) *Executor {
	cp := *e
	cp.registry = registry
	cp.toolExec = toolExec
	return &cp
}

func NewExecutor(dispatcher ProviderDispatcher, registry *tool.Registry, toolExec ToolBackend, mcpTools MCPToolSource, quota QuotaChecker, collaborator collab.Collaborator, cfg Config, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	if collaborator == nil {
		collaborator = collab.NewNoopCollaborator()
	}
	return &Executor{
		dispatcher:   dispatcher,
		registry:     registry,
		toolExec:     toolExec,
		mcpTools:     mcpTools,
		quota:        quota,
		collaborator: collaborator,
		cfg:          cfg.sanitized(),
		log:          log.With("component", "agent.Executor"),
	}
}

// Run executes req to completion and returns the final Result. It never
// returns a Go error for a request-level failure: quota rejection and any
// unexpected error from the Dispatcher or Tool Executor are recorded in the
// trace and returned as Result{Success:false}, per the propagation policy.
func (e *Executor) Run(ctx context.Context, req Request) (*Result, error) {
	return e.run(ctx, req, func(StepEvent) {})
}

// RunStreaming executes req and emits a StepEvent for each state transition
// and tool execution on the returned channel, which is closed after the
// terminal "done" event (or after an unrecoverable error). Events are
// totally ordered: they are all emitted from the single goroutine driving
// this request's loop.
func (e *Executor) RunStreaming(ctx context.Context, req Request) <-chan StepEvent {
	events := make(chan StepEvent, 16)
	go func() {
		defer close(events)
		emit := func(ev StepEvent) {
			ev.Timestamp = time.Now()
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		result, err := e.run(ctx, req, emit)
		if err != nil {
			emit(StepEvent{Status: StatusError, Message: err.Error()})
			return
		}
		emit(StepEvent{Step: result.StepsTaken, Status: StatusDone, Message: result.Response})
	}()
	return events
}

func (e *Executor) run(ctx context.Context, req Request, emit func(StepEvent)) (*Result, error) {
	interactionID := uuid.NewString()
	model := req.Model
	if model == "" {
		model = e.cfg.DefaultModel
	}
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = e.cfg.MaxSteps
	}

	conv := &conversation{}
	e.buildInitialMessages(ctx, req, conv)

	tools := e.buildToolDefs(req)

	var result *Result
	var err error
	if req.EnableReactMode {
		result, err = e.runReact(ctx, req, model, maxSteps, tools, conv, emit)
	} else {
		result, err = e.runSimple(ctx, req, model, tools, conv, emit)
	}
	if err != nil {
		step := 0
		var loopErr *LoopError
		if errors.As(err, &loopErr) {
			step = loopErr.Step
		}
		conv.recordTrace(PhaseError, step, err.Error())
		return &Result{
			Success:        false,
			StepsTaken:     0,
			ReasoningSteps: conv.reasoningSteps,
			ExecutionTrace: conv.trace,
			Error:          err.Error(),
			InteractionID:  interactionID,
		}, nil
	}
	result.InteractionID = interactionID
	if conv.images.IsSet() {
		result.ImageDataURI = conv.images.DataURI
	}

	e.dispatchBookkeeping(req, model, result)
	return result, nil
}

// buildInitialMessages seeds conv.messages with the system prompt, any
// memory/context the request asked for, and the user's prompt.
func (e *Executor) buildInitialMessages(ctx context.Context, req Request, conv *conversation) {
	conv.messages = append(conv.messages, message.Message{Role: message.RoleSystem, Content: e.systemPrompt(req)})

	if req.EnableMemory {
		if mem, err := e.collaborator.GetMemory(ctx, req.UserID); err == nil && mem != "" {
			conv.messages = append(conv.messages, message.Message{Role: message.RoleSystem, Content: "Known context about this user: " + mem})
		}
	}
	for key, value := range req.Context {
		conv.messages = append(conv.messages, message.Message{Role: message.RoleSystem, Content: fmt.Sprintf("[%s] %s", key, value)})
	}

	userMsg := message.Message{Role: message.RoleUser, Content: req.Prompt}
	if req.Image != "" || req.Audio != "" {
		var parts []message.Part
		if req.Prompt != "" {
			parts = append(parts, message.Part{Type: message.PartText, Text: req.Prompt})
		}
		if req.Image != "" {
			parts = append(parts, message.Part{Type: message.PartImageURL, URL: req.Image})
		}
		if req.Audio != "" {
			parts = append(parts, message.Part{Type: message.PartAudio, URL: req.Audio})
		}
		userMsg = message.Message{Role: message.RoleUser, Parts: parts}
	}
	conv.messages = append(conv.messages, userMsg)
}

// buildToolDefs assembles the request's tool list: the registry snapshot
// (already scoped to req.ToolsConfig by the caller that built the
// registry) unioned with MCP-discovered tools when enabled.
func (e *Executor) buildToolDefs(req Request) []message.ToolDefinition {
	var defs []message.ToolDefinition
	if e.registry != nil {
		defs = append(defs, e.registry.Snapshot()...)
	}
	if req.EnableMCP && e.mcpTools != nil {
		for _, schema := range e.mcpTools.ToolSchemas() {
			var params map[string]any
			if len(schema.InputSchema) > 0 {
				_ = json.Unmarshal(schema.InputSchema, &params)
			}
			defs = append(defs, message.ToolDefinition{
				Name:        fmt.Sprintf("mcp_%s_%s", schema.ServerID, schema.Name),
				Description: schema.Description,
				Parameters:  params,
			})
		}
	}
	return defs
}

// dispatchOnce performs one Quota Gate check followed by one Dispatcher
// call, folds the resulting chunk stream, and retries on a rate-limit
// signal up to cfg.RateLimitMaxRetries times after cfg.RateLimitBackoff,
// emitting a StatusError event with retry_in on each retry. This is the
// single dispatch path for every round in both loop modes, so the
// rate-limit retry is standardized across planning, execution, reflection,
// and summary calls alike.
func (e *Executor) dispatchOnce(ctx context.Context, userID, model string, messages []message.Message, tools []message.ToolDefinition, emit func(StepEvent)) (*message.CompletionResponse, error) {
	if e.quota != nil {
		if err := e.quota.Check(userID, model); err != nil {
			return nil, err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.cfg.RateLimitMaxRetries; attempt++ {
		resp, err := e.dispatcher.Complete(ctx, messages, model, tools, provider.Params{})
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !provider.IsRateLimit(err) || attempt == e.cfg.RateLimitMaxRetries {
			return resp, err
		}

		emit(StepEvent{
			Status:  StatusError,
			Message: "provider rate limited, retrying",
			Details: map[string]any{"retry_in": int(e.cfg.RateLimitBackoff / time.Second)},
		})

		select {
		case <-time.After(e.cfg.RateLimitBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (e *Executor) dispatchBookkeeping(req Request, model string, result *Result) {
	go func() {
		ctx := context.Background()
		if err := e.collaborator.PersistChatLog(ctx, req.UserID, model, req.Prompt, result.Response, result.InteractionID); err != nil {
			e.log.Warn("chat log persistence failed", "error", err)
		}
		if req.SessionID != "" {
			if err := e.collaborator.AppendToSession(ctx, req.SessionID, req.UserID, req.Prompt, model); err != nil {
				e.log.Warn("session append failed", "error", err)
			}
		}
		if req.EnableMemory {
			if err := e.collaborator.UpdateMemory(ctx, req.UserID, req.Prompt); err != nil {
				e.log.Warn("memory update failed", "error", err)
			}
		}
	}()
}

// toolNames formats the tool calls recorded in a round for a reasoning-step
// description.
func toolNames(calls []message.ToolCall) string {
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func stepLabel(n int) string {
	return "step " + strconv.Itoa(n)
}
